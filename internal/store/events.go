package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dhkang/photocal/internal/model"
)

const eventCols = `local_id, user_id, title, description, location,
       start_at, end_at, all_day, status, visible, confidence,
       deleted_at, remote_id, last_synced_at, local_updated_at`

// InsertEvent writes a new local event. A missing LocalID is assigned a
// fresh UUID; a zero LocalUpdatedAt is stamped with the current time.
func (s *Store) InsertEvent(ctx context.Context, ev *model.Event) error {
	if ev.UserID == "" {
		return fmt.Errorf("inserting event: user id is required")
	}
	if ev.Title == "" {
		return fmt.Errorf("inserting event: title is required")
	}
	if ev.Start.IsZero() {
		return fmt.Errorf("inserting event %q: start time is required", ev.Title)
	}
	if ev.LocalID == "" {
		ev.LocalID = uuid.NewString()
	}
	if ev.LocalUpdatedAt.IsZero() {
		ev.LocalUpdatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO events
		    (local_id, user_id, title, description, location, start_at, end_at,
		     all_day, status, visible, confidence, deleted_at, remote_id,
		     last_synced_at, local_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		ev.LocalID,
		ev.UserID,
		ev.Title,
		ev.Description,
		ev.Location,
		formatTime(ev.Start),
		formatTimePtr(ev.End),
		boolToInt(ev.AllDay),
		ev.Status.String(),
		boolToInt(ev.Visible),
		ev.Confidence,
		formatTimePtr(ev.DeletedAt),
		ev.RemoteID,
		formatTimePtr(ev.LastSyncedAt),
		formatTime(ev.LocalUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting event %q: %w", ev.Title, err)
	}
	return nil
}

// UpdateEvent rewrites the content fields of an existing event. The caller
// is responsible for bumping LocalUpdatedAt before calling.
func (s *Store) UpdateEvent(ctx context.Context, ev *model.Event) error {
	const q = `
		UPDATE events SET
		    title = ?, description = ?, location = ?, start_at = ?, end_at = ?,
		    all_day = ?, status = ?, visible = ?, local_updated_at = ?
		WHERE user_id = ? AND local_id = ?`

	res, err := s.db.ExecContext(ctx, q,
		ev.Title,
		ev.Description,
		ev.Location,
		formatTime(ev.Start),
		formatTimePtr(ev.End),
		boolToInt(ev.AllDay),
		ev.Status.String(),
		boolToInt(ev.Visible),
		formatTime(ev.LocalUpdatedAt),
		ev.UserID,
		ev.LocalID,
	)
	if err != nil {
		return fmt.Errorf("updating event %q: %w", ev.LocalID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("updating event %q: not found", ev.LocalID)
	}
	return nil
}

// GetEvent returns the event with the given local id, or (nil, nil) if no
// such event exists.
func (s *Store) GetEvent(ctx context.Context, userID, localID string) (*model.Event, error) {
	q := `SELECT ` + eventCols + ` FROM events WHERE user_id = ? AND local_id = ?`
	row := s.db.QueryRowContext(ctx, q, userID, localID)
	return scanEvent(row)
}

// FindByRemoteID returns the event linked to the given provider id, or
// (nil, nil) if none.
func (s *Store) FindByRemoteID(ctx context.Context, userID, remoteID string) (*model.Event, error) {
	q := `SELECT ` + eventCols + ` FROM events WHERE user_id = ? AND remote_id = ?`
	row := s.db.QueryRowContext(ctx, q, userID, remoteID)
	return scanEvent(row)
}

// ListWindow returns events whose start falls in [w.From, w.To). Soft-deleted
// rows are excluded unless includeDeleted is set — the sync engine needs them
// to detect local deletions on linked events.
func (s *Store) ListWindow(ctx context.Context, userID string, w model.Window, includeDeleted bool) ([]*model.Event, error) {
	q := `SELECT ` + eventCols + ` FROM events
		WHERE user_id = ? AND start_at >= ? AND start_at < ?`
	if !includeDeleted {
		q += ` AND deleted_at = ''`
	}
	q += ` ORDER BY start_at`

	rows, err := s.db.QueryContext(ctx, q, userID, formatTime(w.From), formatTime(w.To))
	if err != nil {
		return nil, fmt.Errorf("querying events in window: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpsertFromRemote writes remote content into the local store and stamps the
// sync metadata in the same statement, so an event is never observable as
// pulled-but-unsynced. An empty localID creates a new event; otherwise the
// existing row is overwritten, clearing any soft delete.
func (s *Store) UpsertFromRemote(ctx context.Context, userID string, rem *model.RemoteEvent, localID string, syncedAt time.Time) (*model.Event, error) {
	if localID == "" {
		localID = uuid.NewString()
	}

	const q = `
		INSERT INTO events
		    (local_id, user_id, title, description, location, start_at, end_at,
		     all_day, status, visible, confidence, deleted_at, remote_id,
		     last_synced_at, local_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, '', ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
		    title            = excluded.title,
		    description      = excluded.description,
		    location         = excluded.location,
		    start_at         = excluded.start_at,
		    end_at           = excluded.end_at,
		    all_day          = excluded.all_day,
		    status           = excluded.status,
		    visible          = 1,
		    deleted_at       = '',
		    remote_id        = excluded.remote_id,
		    last_synced_at   = excluded.last_synced_at,
		    local_updated_at = excluded.local_updated_at`

	stamp := formatTime(syncedAt)
	_, err := s.db.ExecContext(ctx, q,
		localID,
		userID,
		rem.Title,
		rem.Description,
		rem.Location,
		formatTime(rem.Start),
		formatTimePtr(rem.End),
		boolToInt(rem.AllDay),
		model.StatusConfirmed.String(),
		rem.RemoteID,
		stamp,
		stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting event from remote %q: %w", rem.RemoteID, err)
	}

	return s.GetEvent(ctx, userID, localID)
}

// MarkSynced links an event to its provider counterpart. Enforces the
// invariant that a linked event always carries a sync timestamp.
func (s *Store) MarkSynced(ctx context.Context, userID, localID, remoteID string, at time.Time) error {
	if remoteID == "" {
		return fmt.Errorf("marking %q synced: remote id is required", localID)
	}
	if at.IsZero() {
		return fmt.Errorf("marking %q synced: sync timestamp is required", localID)
	}

	const q = `UPDATE events SET remote_id = ?, last_synced_at = ? WHERE user_id = ? AND local_id = ?`
	res, err := s.db.ExecContext(ctx, q, remoteID, formatTime(at), userID, localID)
	if err != nil {
		return fmt.Errorf("marking %q synced: %w", localID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("marking %q synced: not found", localID)
	}
	return nil
}

// SoftDelete marks the event deleted without removing the row, so the next
// sync pass can propagate the deletion. Already-deleted events keep their
// original deletion time.
func (s *Store) SoftDelete(ctx context.Context, userID, localID string, at time.Time) error {
	const q = `
		UPDATE events SET deleted_at = ?, local_updated_at = ?
		WHERE user_id = ? AND local_id = ? AND deleted_at = ''`
	if _, err := s.db.ExecContext(ctx, q, formatTime(at), formatTime(at), userID, localID); err != nil {
		return fmt.Errorf("soft-deleting %q: %w", localID, err)
	}
	return nil
}

// SetEventStatus updates the lifecycle status and visibility of an event,
// bumping its local modification time.
func (s *Store) SetEventStatus(ctx context.Context, userID, localID string, status model.EventStatus, visible bool, at time.Time) error {
	const q = `
		UPDATE events SET status = ?, visible = ?, local_updated_at = ?
		WHERE user_id = ? AND local_id = ?`
	res, err := s.db.ExecContext(ctx, q, status.String(), boolToInt(visible), formatTime(at), userID, localID)
	if err != nil {
		return fmt.Errorf("setting status of %q: %w", localID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("setting status of %q: not found", localID)
	}
	return nil
}

func scanEvent(sc scanner) (*model.Event, error) {
	var ev model.Event
	var start, end, status, deletedAt, syncedAt, updatedAt string
	var allDay, visible int

	err := sc.Scan(
		&ev.LocalID,
		&ev.UserID,
		&ev.Title,
		&ev.Description,
		&ev.Location,
		&start,
		&end,
		&allDay,
		&status,
		&visible,
		&ev.Confidence,
		&deletedAt,
		&ev.RemoteID,
		&syncedAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event row: %w", err)
	}

	ev.Start, err = parseTime(start)
	if err != nil {
		return nil, fmt.Errorf("parsing start of %q: %w", ev.LocalID, err)
	}
	ev.End = parseTimePtr(end)
	ev.AllDay = allDay != 0
	ev.Visible = visible != 0
	ev.Status, err = model.ParseEventStatus(status)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", ev.LocalID, err)
	}
	ev.DeletedAt = parseTimePtr(deletedAt)
	ev.LastSyncedAt = parseTimePtr(syncedAt)
	ev.LocalUpdatedAt, _ = parseTime(updatedAt)

	return &ev, nil
}
