package sync

import "github.com/dhkang/photocal/internal/model"

// Resolve maps a detected conflict to a resolution under the given
// strategy. Manual always defers. NewestWins compares the
// modification timestamps captured in the snapshots and breaks exact
// ties toward the remote side, so two runs over the same state pick
// the same winner.
func Resolve(c *model.Conflict, strategy model.Strategy) model.Resolution {
	switch strategy {
	case model.LocalWins:
		return model.KeepLocal
	case model.RemoteWins:
		return model.KeepRemote
	case model.NewestWins:
		if c.Local.UpdatedAt.After(c.Remote.UpdatedAt) {
			return model.KeepLocal
		}
		return model.KeepRemote
	default:
		return model.Deferred
	}
}
