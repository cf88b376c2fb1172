package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dhkang/photocal/internal/model"
)

const conflictCols = `id, user_id, local_id, remote_id, kind, local_snapshot, remote_snapshot, detected_at`

// UpsertConflict queues a conflict for manual resolution. Conflicts are
// deduplicated by (user, local, remote): rediscovering the same pair on a
// later pass overwrites the stored snapshots instead of queueing a
// duplicate.
func (s *Store) UpsertConflict(ctx context.Context, c *model.Conflict) error {
	localSnap, err := json.Marshal(c.Local)
	if err != nil {
		return fmt.Errorf("encoding local snapshot: %w", err)
	}
	remoteSnap, err := json.Marshal(c.Remote)
	if err != nil {
		return fmt.Errorf("encoding remote snapshot: %w", err)
	}

	const q = `
		INSERT INTO conflicts
		    (user_id, local_id, remote_id, kind, local_snapshot, remote_snapshot, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, local_id, remote_id) DO UPDATE SET
		    kind            = excluded.kind,
		    local_snapshot  = excluded.local_snapshot,
		    remote_snapshot = excluded.remote_snapshot,
		    detected_at     = excluded.detected_at`

	res, err := s.db.ExecContext(ctx, q,
		c.UserID,
		c.LocalID,
		c.RemoteID,
		c.Kind.String(),
		string(localSnap),
		string(remoteSnap),
		formatTime(c.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("queueing conflict %s↔%s: %w", c.LocalID, c.RemoteID, err)
	}
	id, err := res.LastInsertId()
	if err == nil && id > 0 {
		c.ID = id
	}
	return nil
}

// GetConflict returns the queued conflict with the given row id, or
// (nil, nil) if none.
func (s *Store) GetConflict(ctx context.Context, userID string, id int64) (*model.Conflict, error) {
	q := `SELECT ` + conflictCols + ` FROM conflicts WHERE user_id = ? AND id = ?`
	row := s.db.QueryRowContext(ctx, q, userID, id)
	return scanConflict(row)
}

// ListConflicts returns all queued conflicts for the user, oldest first.
func (s *Store) ListConflicts(ctx context.Context, userID string) ([]*model.Conflict, error) {
	q := `SELECT ` + conflictCols + ` FROM conflicts WHERE user_id = ? ORDER BY detected_at, id`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conflicts []*model.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// DeleteConflict removes a resolved conflict from the queue.
func (s *Store) DeleteConflict(ctx context.Context, userID string, id int64) error {
	const q = `DELETE FROM conflicts WHERE user_id = ? AND id = ?`
	if _, err := s.db.ExecContext(ctx, q, userID, id); err != nil {
		return fmt.Errorf("deleting conflict id=%d: %w", id, err)
	}
	return nil
}

// CountConflicts returns the number of queued conflicts for the user.
func (s *Store) CountConflicts(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conflicts WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting conflicts: %w", err)
	}
	return count, nil
}

func scanConflict(sc scanner) (*model.Conflict, error) {
	var c model.Conflict
	var kind, localSnap, remoteSnap, detectedAt string

	err := sc.Scan(
		&c.ID,
		&c.UserID,
		&c.LocalID,
		&c.RemoteID,
		&kind,
		&localSnap,
		&remoteSnap,
		&detectedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conflict row: %w", err)
	}

	c.Kind, err = model.ParseConflictKind(kind)
	if err != nil {
		return nil, fmt.Errorf("conflict id=%d: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(localSnap), &c.Local); err != nil {
		return nil, fmt.Errorf("decoding local snapshot of conflict id=%d: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(remoteSnap), &c.Remote); err != nil {
		return nil, fmt.Errorf("decoding remote snapshot of conflict id=%d: %w", c.ID, err)
	}
	c.DetectedAt, _ = parseTime(detectedAt)

	return &c, nil
}
