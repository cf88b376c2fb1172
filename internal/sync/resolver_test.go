package sync

import (
	"testing"
	"time"

	"github.com/dhkang/photocal/internal/model"
)

func conflictAt(localAt, remoteAt time.Time) *model.Conflict {
	return &model.Conflict{
		Kind:   model.KindBothModified,
		Local:  model.Snapshot{Title: "local", UpdatedAt: localAt},
		Remote: model.Snapshot{Title: "remote", UpdatedAt: remoteAt},
	}
}

func TestResolve(t *testing.T) {
	earlier := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	tests := []struct {
		name     string
		c        *model.Conflict
		strategy model.Strategy
		want     model.Resolution
	}{
		{"local wins", conflictAt(earlier, later), model.LocalWins, model.KeepLocal},
		{"remote wins", conflictAt(later, earlier), model.RemoteWins, model.KeepRemote},
		{"newest picks local", conflictAt(later, earlier), model.NewestWins, model.KeepLocal},
		{"newest picks remote", conflictAt(earlier, later), model.NewestWins, model.KeepRemote},
		{"newest tie keeps remote", conflictAt(earlier, earlier), model.NewestWins, model.KeepRemote},
		{"manual defers", conflictAt(earlier, later), model.Manual, model.Deferred},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.c, tt.strategy); got != tt.want {
				t.Errorf("Resolve() = %s, want %s", got, tt.want)
			}
		})
	}
}
