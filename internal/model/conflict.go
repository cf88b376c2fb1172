package model

import (
	"fmt"
	"time"
)

// ConflictKind classifies why a linked pair needs a resolution decision.
type ConflictKind int

const (
	// KindBothModified means both sides changed since the last sync.
	KindBothModified ConflictKind = iota
	// KindDeletedRemotely means the provider reports the event cancelled
	// while the local copy still exists.
	KindDeletedRemotely
	// KindDeletedLocally means the local event was soft-deleted while the
	// remote copy still exists.
	KindDeletedLocally
)

func (k ConflictKind) String() string {
	switch k {
	case KindDeletedRemotely:
		return "deleted_remotely"
	case KindDeletedLocally:
		return "deleted_locally"
	default:
		return "both_modified"
	}
}

// ParseConflictKind maps a stored label back to its ConflictKind.
func ParseConflictKind(s string) (ConflictKind, error) {
	switch s {
	case "both_modified":
		return KindBothModified, nil
	case "deleted_remotely":
		return KindDeletedRemotely, nil
	case "deleted_locally":
		return KindDeletedLocally, nil
	}
	return KindBothModified, fmt.Errorf("unknown conflict kind %q", s)
}

// Strategy is the policy used to resolve conflicts during a sync run.
type Strategy int

const (
	// LocalWins always keeps the local side.
	LocalWins Strategy = iota
	// RemoteWins always keeps the remote side.
	RemoteWins
	// NewestWins keeps the side with the strictly later modification
	// timestamp; exact ties keep remote.
	NewestWins
	// Manual defers every conflict to the pending queue for an explicit
	// user decision.
	Manual
)

func (s Strategy) String() string {
	switch s {
	case LocalWins:
		return "local-wins"
	case RemoteWins:
		return "remote-wins"
	case Manual:
		return "manual"
	default:
		return "newest-wins"
	}
}

// ParseStrategy maps a config/CLI label to its Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "local-wins":
		return LocalWins, nil
	case "remote-wins":
		return RemoteWins, nil
	case "newest-wins":
		return NewestWins, nil
	case "manual":
		return Manual, nil
	}
	return NewestWins, fmt.Errorf("unknown conflict strategy %q", s)
}

// Resolution is the outcome of resolving a single conflict.
type Resolution int

const (
	// KeepLocal propagates the local side to the provider.
	KeepLocal Resolution = iota
	// KeepRemote propagates the remote side into the local store.
	KeepRemote
	// Deferred queues the conflict for manual resolution.
	Deferred
)

func (r Resolution) String() string {
	switch r {
	case KeepLocal:
		return "keep-local"
	case KeepRemote:
		return "keep-remote"
	default:
		return "deferred"
	}
}

// ParseResolution maps an explicit manual-resolution directive. Deferred is
// not accepted: a manual decision must pick a side.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "keep-local", "local":
		return KeepLocal, nil
	case "keep-remote", "remote":
		return KeepRemote, nil
	}
	return Deferred, fmt.Errorf("unknown resolution %q (want local or remote)", s)
}

// Snapshot captures one side of a conflict at detection time. Persisted as
// JSON in the conflicts table so a deferred conflict can be resolved after
// the sync pass that found it.
type Snapshot struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      bool       `json:"all_day"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Deleted     bool       `json:"deleted"`
}

// SnapshotOfEvent captures the local side of a conflict.
func SnapshotOfEvent(e *Event) Snapshot {
	return Snapshot{
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Start:       e.Start,
		End:         e.End,
		AllDay:      e.AllDay,
		UpdatedAt:   e.LocalUpdatedAt,
		Deleted:     e.Deleted(),
	}
}

// SnapshotOfRemote captures the remote side of a conflict.
func SnapshotOfRemote(r *RemoteEvent) Snapshot {
	return Snapshot{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Start:       r.Start,
		End:         r.End,
		AllDay:      r.AllDay,
		UpdatedAt:   r.UpdatedAt,
		Deleted:     r.Deleted,
	}
}

// RemoteEvent rehydrates the remote side of a persisted conflict so a
// deferred resolution can be applied without refetching the provider.
func (s Snapshot) RemoteEvent(remoteID string) *RemoteEvent {
	return &RemoteEvent{
		RemoteID:    remoteID,
		Title:       s.Title,
		Description: s.Description,
		Location:    s.Location,
		Start:       s.Start,
		End:         s.End,
		AllDay:      s.AllDay,
		UpdatedAt:   s.UpdatedAt,
		Deleted:     s.Deleted,
	}
}

// Conflict pairs a linked local/remote event that diverged since the last
// sync. Only persisted when the strategy defers it for manual resolution;
// rediscovery on a later pass overwrites the snapshots of the queued row.
type Conflict struct {
	// ID is the database row id, zero until persisted.
	ID int64

	UserID   string
	LocalID  string
	RemoteID string

	Kind   ConflictKind
	Local  Snapshot
	Remote Snapshot

	DetectedAt time.Time
}
