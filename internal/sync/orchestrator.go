package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/remote"
	"github.com/dhkang/photocal/internal/store"
)

// ErrSyncInProgress is returned when a sync or manual resolution is
// requested for a user that already has one in flight.
var ErrSyncInProgress = errors.New("sync already in progress for user")

// createConcurrency bounds how many unlinked events are created at the
// provider in parallel. Linked pairs are always processed sequentially
// so no sync link is ever written from two goroutines.
const createConcurrency = 4

// Orchestrator drives one bidirectional sync pass at a time per user.
type Orchestrator struct {
	cal   RemoteCalendar
	store Store
	log   *slog.Logger

	mu      gosync.Mutex
	running map[string]struct{}
}

func NewOrchestrator(cal RemoteCalendar, st Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cal:     cal,
		store:   st,
		log:     logger,
		running: make(map[string]struct{}),
	}
}

func (o *Orchestrator) acquire(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.running[userID]; busy {
		return false
	}
	o.running[userID] = struct{}{}
	return true
}

func (o *Orchestrator) release(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, userID)
}

// Status reports the user's sync health from persisted state only.
func (o *Orchestrator) Status(ctx context.Context, userID string) (*store.SyncStatus, error) {
	return o.store.Status(ctx, userID)
}

// Sync runs one full bidirectional pass over the window. Per-event
// failures are recorded in the report and do not stop the run; an
// authorization failure aborts immediately since every further call
// would fail the same way. When local and remote agree the pass
// mutates nothing, so running it twice is safe.
func (o *Orchestrator) Sync(ctx context.Context, userID string, w model.Window, strategy model.Strategy) (*Report, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if !o.acquire(userID) {
		return nil, ErrSyncInProgress
	}
	defer o.release(userID)

	rpt := &Report{}

	remotes, err := o.cal.List(ctx, w)
	if err != nil {
		return rpt, fmt.Errorf("listing remote events: %w", err)
	}
	locals, err := o.store.ListWindow(ctx, userID, w, true)
	if err != nil {
		return rpt, fmt.Errorf("listing local events: %w", err)
	}
	links, err := o.store.ListLinks(ctx, userID)
	if err != nil {
		return rpt, fmt.Errorf("listing sync links: %w", err)
	}

	localByID := make(map[string]*model.Event, len(locals))
	for _, ev := range locals {
		localByID[ev.LocalID] = ev
	}
	remoteByID := make(map[string]*model.RemoteEvent, len(remotes))
	for i := range remotes {
		remoteByID[remotes[i].RemoteID] = &remotes[i]
	}

	linkedLocal := make(map[string]bool, len(links))
	linkedRemote := make(map[string]bool, len(links))
	now := time.Now().UTC()

	for _, ln := range links {
		linkedLocal[ln.LocalID] = true
		linkedRemote[ln.RemoteID] = true

		local := localByID[ln.LocalID]
		if local == nil {
			// The local copy may simply be outside the window.
			local, err = o.store.GetEvent(ctx, userID, ln.LocalID)
			if err != nil {
				return rpt, fmt.Errorf("loading linked event %s: %w", ln.LocalID, err)
			}
		}
		if local == nil {
			// Event row gone entirely; the link points at nothing.
			if err := o.store.DeleteLink(ctx, ln.ID); err != nil {
				return rpt, fmt.Errorf("dropping orphaned link %d: %w", ln.ID, err)
			}
			continue
		}

		if err := o.syncPair(ctx, userID, strategy, ln, local, remoteByID[ln.RemoteID], now, rpt); err != nil {
			if remote.IsAuth(err) {
				rpt.recordError(ln.LocalID, ln.RemoteID, "sync", err)
				return rpt, fmt.Errorf("authorization failure aborted sync: %w", err)
			}
			rpt.recordError(ln.LocalID, ln.RemoteID, "sync", err)
			o.log.Error("event sync failed",
				"user_id", userID, "local_id", ln.LocalID, "remote_id", ln.RemoteID, "error", err)
		}
	}

	// Unlinked events on either side are creations for the other.
	// They are independent of each other, so create them under a
	// bounded group.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(createConcurrency)
	var rptMu gosync.Mutex

	for _, ev := range locals {
		if linkedLocal[ev.LocalID] || !ev.PushEligible() {
			continue
		}
		if ev.RemoteID != "" {
			// Already pushed but the link write was lost; the pull side
			// relinks it by remote id instead of creating a duplicate.
			continue
		}
		ev := ev
		g.Go(func() error {
			if err := o.pushCreate(gctx, userID, ev); err != nil {
				if remote.IsAuth(err) {
					return err
				}
				rptMu.Lock()
				rpt.recordError(ev.LocalID, "", "create", err)
				rptMu.Unlock()
				o.log.Error("event push failed", "user_id", userID, "local_id", ev.LocalID, "error", err)
				return nil
			}
			rptMu.Lock()
			rpt.Created.Push++
			rptMu.Unlock()
			return nil
		})
	}
	for i := range remotes {
		rem := &remotes[i]
		if linkedRemote[rem.RemoteID] || rem.Deleted {
			continue
		}
		g.Go(func() error {
			if err := o.pullCreate(gctx, userID, rem); err != nil {
				if remote.IsAuth(err) {
					return err
				}
				rptMu.Lock()
				rpt.recordError("", rem.RemoteID, "create", err)
				rptMu.Unlock()
				o.log.Error("event pull failed", "user_id", userID, "remote_id", rem.RemoteID, "error", err)
				return nil
			}
			rptMu.Lock()
			rpt.Created.Pull++
			rptMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rpt.Partial = true
		return rpt, fmt.Errorf("authorization failure aborted sync: %w", err)
	}

	if len(rpt.Conflicts) > 0 {
		rpt.Partial = true
	}
	o.log.Info("sync pass complete",
		"user_id", userID,
		"created", rpt.Created.Total(),
		"updated", rpt.Updated.Total(),
		"deleted", rpt.Deleted.Total(),
		"conflicts", len(rpt.Conflicts),
		"errors", len(rpt.Errors))
	return rpt, nil
}

// syncPair reconciles one linked local/remote pair. A nil rem means the
// provider did not return the event for this window.
func (o *Orchestrator) syncPair(ctx context.Context, userID string, strategy model.Strategy, ln *store.Link, local *model.Event, rem *model.RemoteEvent, now time.Time, rpt *Report) error {
	cs := detectChanges(ln, local, rem)

	// Record the provider's modification timestamp as soon as a remote
	// change is observed, so a deferred conflict still shows up as a
	// pending remote change in the status projection.
	if rem != nil && (cs.remoteChanged || cs.remoteDeleted) && rem.UpdatedAt.After(ln.RemoteUpdatedAt) {
		if err := o.store.TouchLinkRemote(ctx, ln.ID, rem.UpdatedAt); err != nil {
			return fmt.Errorf("recording remote change: %w", err)
		}
		ln.RemoteUpdatedAt = rem.UpdatedAt
	}

	// Both sides deleted: agreement, just retire the link.
	if cs.localDeleted && cs.remoteDeleted {
		rpt.Deleted.Pull++
		return o.store.DeleteLink(ctx, ln.ID)
	}

	// Local deletion with the remote copy outside the window: the
	// remote side reported nothing, so propagate the deletion.
	if cs.localDeleted && rem == nil {
		return o.pushDelete(ctx, ln, rpt)
	}

	kind, conflicted := classifyConflict(cs)
	if !conflicted {
		switch {
		case cs.localChanged && !cs.remoteChanged:
			return o.pushUpdate(ctx, userID, ln, local, now, rpt)
		case cs.remoteChanged && !cs.localChanged:
			return o.pullUpdate(ctx, userID, ln, rem, now, rpt)
		default:
			return nil
		}
	}

	c := &model.Conflict{
		UserID:     userID,
		LocalID:    ln.LocalID,
		RemoteID:   ln.RemoteID,
		Kind:       kind,
		Local:      model.SnapshotOfEvent(local),
		Remote:     model.SnapshotOfRemote(rem),
		DetectedAt: now,
	}

	res := Resolve(c, strategy)
	if res == model.Deferred {
		if err := o.store.UpsertConflict(ctx, c); err != nil {
			return fmt.Errorf("queuing conflict: %w", err)
		}
		rpt.Conflicts = append(rpt.Conflicts, *c)
		o.log.Warn("conflict deferred",
			"user_id", userID, "local_id", ln.LocalID, "remote_id", ln.RemoteID, "kind", kind.String())
		return nil
	}
	return o.applyResolution(ctx, userID, ln, local, rem, kind, res, now, rpt)
}

// applyResolution propagates the winning side of a classified conflict.
func (o *Orchestrator) applyResolution(ctx context.Context, userID string, ln *store.Link, local *model.Event, rem *model.RemoteEvent, kind model.ConflictKind, res model.Resolution, now time.Time, rpt *Report) error {
	switch kind {
	case model.KindBothModified:
		if res == model.KeepLocal {
			return o.pushUpdate(ctx, userID, ln, local, now, rpt)
		}
		return o.pullUpdate(ctx, userID, ln, rem, now, rpt)

	case model.KindDeletedRemotely:
		if res == model.KeepRemote {
			// Accept the deletion.
			if err := o.store.SoftDelete(ctx, userID, ln.LocalID, now); err != nil {
				return fmt.Errorf("deleting local event: %w", err)
			}
			if err := o.store.DeleteLink(ctx, ln.ID); err != nil {
				return fmt.Errorf("retiring link: %w", err)
			}
			rpt.Deleted.Pull++
			return nil
		}
		// Undo the deletion: the event gets a fresh remote identity.
		remoteID, err := o.cal.Create(ctx, local)
		if err != nil {
			return fmt.Errorf("recreating remote event: %w", err)
		}
		if err := o.store.MarkSynced(ctx, userID, local.LocalID, remoteID, now); err != nil {
			return fmt.Errorf("recording new remote id: %w", err)
		}
		ln.RemoteID = remoteID
		ln.LastSyncHash = local.ContentHash()
		ln.RemoteUpdatedAt = now
		ln.LastSyncedAt = now
		if err := o.store.UpsertLink(ctx, ln); err != nil {
			return fmt.Errorf("relinking event: %w", err)
		}
		rpt.Created.Push++
		return nil

	case model.KindDeletedLocally:
		if res == model.KeepLocal {
			return o.pushDelete(ctx, ln, rpt)
		}
		// Undo the deletion: restore the remote content locally.
		return o.pullUpdate(ctx, userID, ln, rem, now, rpt)
	}
	return fmt.Errorf("unhandled conflict kind %s", kind)
}

// ResolveConflict applies an explicit decision to a queued conflict
// and removes it from the queue. The decision must pick a side.
func (o *Orchestrator) ResolveConflict(ctx context.Context, userID string, conflictID int64, decision model.Resolution) error {
	if decision != model.KeepLocal && decision != model.KeepRemote {
		return fmt.Errorf("manual resolution must keep a side, got %s", decision)
	}
	if !o.acquire(userID) {
		return ErrSyncInProgress
	}
	defer o.release(userID)

	c, err := o.store.GetConflict(ctx, userID, conflictID)
	if err != nil {
		return fmt.Errorf("loading conflict: %w", err)
	}
	if c == nil {
		return fmt.Errorf("conflict %d not found", conflictID)
	}

	ln, err := o.store.GetLinkByLocalID(ctx, userID, c.LocalID)
	if err != nil {
		return fmt.Errorf("loading link: %w", err)
	}
	if ln == nil {
		// The pair was unlinked since detection; nothing left to decide.
		return o.store.DeleteConflict(ctx, userID, c.ID)
	}
	local, err := o.store.GetEvent(ctx, userID, c.LocalID)
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	if local == nil && decision == model.KeepLocal {
		return fmt.Errorf("cannot keep local side of conflict %d: event %s no longer exists", c.ID, c.LocalID)
	}

	rpt := &Report{}
	now := time.Now().UTC()
	if err := o.applyResolution(ctx, userID, ln, local, c.Remote.RemoteEvent(c.RemoteID), c.Kind, decision, now, rpt); err != nil {
		return err
	}
	o.log.Info("conflict resolved",
		"user_id", userID, "conflict_id", c.ID, "kind", c.Kind.String(), "decision", decision.String())
	return o.store.DeleteConflict(ctx, userID, c.ID)
}

func (o *Orchestrator) pushCreate(ctx context.Context, userID string, ev *model.Event) error {
	remoteID, err := o.cal.Create(ctx, ev)
	if err != nil {
		return fmt.Errorf("creating remote event: %w", err)
	}
	now := time.Now().UTC()
	if err := o.store.MarkSynced(ctx, userID, ev.LocalID, remoteID, now); err != nil {
		return fmt.Errorf("recording remote id: %w", err)
	}
	ln := &store.Link{
		UserID:          userID,
		LocalID:         ev.LocalID,
		RemoteID:        remoteID,
		LastSyncHash:    ev.ContentHash(),
		RemoteUpdatedAt: now,
		LastSyncedAt:    now,
	}
	if err := o.store.UpsertLink(ctx, ln); err != nil {
		return fmt.Errorf("linking event: %w", err)
	}
	return nil
}

func (o *Orchestrator) pullCreate(ctx context.Context, userID string, rem *model.RemoteEvent) error {
	// A crash between MarkSynced and UpsertLink can leave an event
	// carrying this remote id without a link; reuse it instead of
	// creating a duplicate.
	localID := ""
	existing, err := o.store.FindByRemoteID(ctx, userID, rem.RemoteID)
	if err != nil {
		return fmt.Errorf("checking for existing event: %w", err)
	}
	if existing != nil {
		localID = existing.LocalID
	}

	now := time.Now().UTC()
	ev, err := o.store.UpsertFromRemote(ctx, userID, rem, localID, now)
	if err != nil {
		return fmt.Errorf("storing remote event: %w", err)
	}
	ln := &store.Link{
		UserID:          userID,
		LocalID:         ev.LocalID,
		RemoteID:        rem.RemoteID,
		LastSyncHash:    rem.ContentHash(),
		RemoteUpdatedAt: rem.UpdatedAt,
		LastSyncedAt:    now,
	}
	if err := o.store.UpsertLink(ctx, ln); err != nil {
		return fmt.Errorf("linking event: %w", err)
	}
	return nil
}

func (o *Orchestrator) pushUpdate(ctx context.Context, userID string, ln *store.Link, local *model.Event, now time.Time, rpt *Report) error {
	if err := o.cal.Update(ctx, ln.RemoteID, local); err != nil {
		return fmt.Errorf("updating remote event: %w", err)
	}
	if err := o.store.MarkSynced(ctx, userID, local.LocalID, ln.RemoteID, now); err != nil {
		return fmt.Errorf("stamping event: %w", err)
	}
	ln.LastSyncHash = local.ContentHash()
	ln.LastSyncedAt = now
	if err := o.store.UpsertLink(ctx, ln); err != nil {
		return fmt.Errorf("updating link: %w", err)
	}
	rpt.Updated.Push++
	return nil
}

func (o *Orchestrator) pullUpdate(ctx context.Context, userID string, ln *store.Link, rem *model.RemoteEvent, now time.Time, rpt *Report) error {
	if _, err := o.store.UpsertFromRemote(ctx, userID, rem, ln.LocalID, now); err != nil {
		return fmt.Errorf("applying remote change: %w", err)
	}
	ln.LastSyncHash = rem.ContentHash()
	ln.RemoteUpdatedAt = rem.UpdatedAt
	ln.LastSyncedAt = now
	if err := o.store.UpsertLink(ctx, ln); err != nil {
		return fmt.Errorf("updating link: %w", err)
	}
	rpt.Updated.Pull++
	return nil
}

func (o *Orchestrator) pushDelete(ctx context.Context, ln *store.Link, rpt *Report) error {
	if err := o.cal.Delete(ctx, ln.RemoteID); err != nil {
		return fmt.Errorf("deleting remote event: %w", err)
	}
	if err := o.store.DeleteLink(ctx, ln.ID); err != nil {
		return fmt.Errorf("retiring link: %w", err)
	}
	rpt.Deleted.Push++
	return nil
}
