// Package sync reconciles the local event store with an external
// calendar. Each run pulls the remote snapshot for a time window,
// diffs both sides against the recorded sync links, pushes and pulls
// one-sided changes, and classifies two-sided changes as conflicts to
// be resolved by policy or deferred for manual review.
package sync

import (
	"context"
	"time"

	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/store"
)

// RemoteCalendar is the provider side of a sync run. Implemented by
// [googlecal.Adapter]. Implementations classify their failures with
// the remote error categories so the orchestrator can tell a
// per-event problem from a dead credential.
type RemoteCalendar interface {
	List(ctx context.Context, w model.Window) ([]model.RemoteEvent, error)
	Create(ctx context.Context, ev *model.Event) (string, error)
	Update(ctx context.Context, remoteID string, ev *model.Event) error
	Delete(ctx context.Context, remoteID string) error
}

// EventStore is the slice of the local store the orchestrator reads
// and mutates event rows through.
type EventStore interface {
	ListWindow(ctx context.Context, userID string, w model.Window, includeDeleted bool) ([]*model.Event, error)
	GetEvent(ctx context.Context, userID, localID string) (*model.Event, error)
	FindByRemoteID(ctx context.Context, userID, remoteID string) (*model.Event, error)
	UpsertFromRemote(ctx context.Context, userID string, rem *model.RemoteEvent, localID string, syncedAt time.Time) (*model.Event, error)
	MarkSynced(ctx context.Context, userID, localID, remoteID string, at time.Time) error
	SoftDelete(ctx context.Context, userID, localID string, at time.Time) error
}

// LinkStore tracks which local events correspond to which remote
// events, plus the content hash recorded at the last successful sync.
type LinkStore interface {
	ListLinks(ctx context.Context, userID string) ([]*store.Link, error)
	GetLinkByLocalID(ctx context.Context, userID, localID string) (*store.Link, error)
	UpsertLink(ctx context.Context, ln *store.Link) error
	DeleteLink(ctx context.Context, id int64) error
	TouchLinkRemote(ctx context.Context, id int64, remoteUpdatedAt time.Time) error
}

// ConflictStore persists deferred conflicts across runs.
type ConflictStore interface {
	UpsertConflict(ctx context.Context, c *model.Conflict) error
	GetConflict(ctx context.Context, userID string, id int64) (*model.Conflict, error)
	ListConflicts(ctx context.Context, userID string) ([]*model.Conflict, error)
	DeleteConflict(ctx context.Context, userID string, id int64) error
}

// Store is everything the orchestrator needs from persistence.
// Implemented by [store.Store].
type Store interface {
	EventStore
	LinkStore
	ConflictStore
	Status(ctx context.Context, userID string) (*store.SyncStatus, error)
}
