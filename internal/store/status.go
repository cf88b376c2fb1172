package store

import (
	"context"
	"fmt"
	"time"
)

// SyncStatus is a read-only projection over links, events, and the conflict
// queue. Computed entirely from the database — no provider call.
type SyncStatus struct {
	// LastSyncAt is the most recent link stamp, nil before the first sync.
	LastSyncAt *time.Time

	// PendingLocalChanges counts eligible events that would be pushed on
	// the next pass: unlinked confirmed events, locally edited linked
	// events, and soft-deleted linked events.
	PendingLocalChanges int

	// PendingRemoteChanges counts links whose last observed provider
	// timestamp is newer than their sync stamp.
	PendingRemoteChanges int

	// OpenConflicts counts queued manual conflicts.
	OpenConflicts int
}

// Status computes the sync status projection for the user.
func (s *Store) Status(ctx context.Context, userID string) (*SyncStatus, error) {
	var st SyncStatus

	var last string
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(last_synced_at), '') FROM sync_links WHERE user_id = ?`, userID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("querying last sync time: %w", err)
	}
	st.LastSyncAt = parseTimePtr(last)

	// Pending local: eligible unlinked events, edited linked events, and
	// deletions awaiting push.
	const pendingLocalQ = `
		SELECT COUNT(*) FROM events
		WHERE user_id = ?
		  AND (
		        (deleted_at = '' AND visible = 1 AND status IN ('confirmed', 'modified')
		         AND (remote_id = '' OR local_updated_at > last_synced_at))
		     OR (deleted_at != '' AND remote_id != '')
		  )`
	if err := s.db.QueryRowContext(ctx, pendingLocalQ, userID).Scan(&st.PendingLocalChanges); err != nil {
		return nil, fmt.Errorf("counting pending local changes: %w", err)
	}

	const pendingRemoteQ = `
		SELECT COUNT(*) FROM sync_links
		WHERE user_id = ? AND remote_updated_at != '' AND remote_updated_at > last_synced_at`
	if err := s.db.QueryRowContext(ctx, pendingRemoteQ, userID).Scan(&st.PendingRemoteChanges); err != nil {
		return nil, fmt.Errorf("counting pending remote changes: %w", err)
	}

	open, err := s.CountConflicts(ctx, userID)
	if err != nil {
		return nil, err
	}
	st.OpenConflicts = open

	return &st, nil
}
