package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Link binds a local event to its provider counterpart and records the
// last-synchronized snapshot used for change detection.
type Link struct {
	ID       int64
	UserID   string
	LocalID  string
	RemoteID string

	// LastSyncHash is the normalized content hash both sides agreed on at
	// the last successful sync.
	LastSyncHash string

	// RemoteUpdatedAt is the provider modification time last observed for
	// this link, whether or not the change was applied.
	RemoteUpdatedAt time.Time

	LastSyncedAt time.Time
}

const linkCols = `id, user_id, local_id, remote_id, last_sync_hash, remote_updated_at, last_synced_at`

// GetLinkByLocalID returns the link for the given local event, or (nil, nil)
// if the event is unlinked.
func (s *Store) GetLinkByLocalID(ctx context.Context, userID, localID string) (*Link, error) {
	q := `SELECT ` + linkCols + ` FROM sync_links WHERE user_id = ? AND local_id = ?`
	row := s.db.QueryRowContext(ctx, q, userID, localID)
	return scanLink(row)
}

// GetLinkByRemoteID returns the link for the given provider id, or
// (nil, nil) if none.
func (s *Store) GetLinkByRemoteID(ctx context.Context, userID, remoteID string) (*Link, error) {
	q := `SELECT ` + linkCols + ` FROM sync_links WHERE user_id = ? AND remote_id = ?`
	row := s.db.QueryRowContext(ctx, q, userID, remoteID)
	return scanLink(row)
}

// ListLinks returns all links for the user.
func (s *Store) ListLinks(ctx context.Context, userID string) ([]*Link, error) {
	q := `SELECT ` + linkCols + ` FROM sync_links WHERE user_id = ?`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []*Link
	for rows.Next() {
		ln, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, ln)
	}
	return links, rows.Err()
}

// UpsertLink inserts or replaces the link for (user, local event). On
// return the link's ID field holds the stored row id, whether the call
// inserted or updated.
func (s *Store) UpsertLink(ctx context.Context, ln *Link) error {
	if ln.LocalID == "" || ln.RemoteID == "" {
		return fmt.Errorf("upserting link: both local and remote ids are required")
	}

	const q = `
		INSERT INTO sync_links
		    (user_id, local_id, remote_id, last_sync_hash, remote_updated_at, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, local_id) DO UPDATE SET
		    remote_id         = excluded.remote_id,
		    last_sync_hash    = excluded.last_sync_hash,
		    remote_updated_at = excluded.remote_updated_at,
		    last_synced_at    = excluded.last_synced_at
		ON CONFLICT(user_id, remote_id) DO UPDATE SET
		    local_id          = excluded.local_id,
		    last_sync_hash    = excluded.last_sync_hash,
		    remote_updated_at = excluded.remote_updated_at,
		    last_synced_at    = excluded.last_synced_at`

	_, err := s.db.ExecContext(ctx, q,
		ln.UserID,
		ln.LocalID,
		ln.RemoteID,
		ln.LastSyncHash,
		formatTime(ln.RemoteUpdatedAt),
		formatTime(ln.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting link %s↔%s: %w", ln.LocalID, ln.RemoteID, err)
	}

	// LastInsertId reports the last actual insert on the connection, not
	// the row touched by the DO UPDATE path; read the id back instead.
	const idQ = `SELECT id FROM sync_links WHERE user_id = ? AND local_id = ?`
	if err := s.db.QueryRowContext(ctx, idQ, ln.UserID, ln.LocalID).Scan(&ln.ID); err != nil {
		return fmt.Errorf("reading back link %s↔%s: %w", ln.LocalID, ln.RemoteID, err)
	}
	return nil
}

// DeleteLink removes the link with the given row id. Used when a deletion
// is accepted on either side.
func (s *Store) DeleteLink(ctx context.Context, id int64) error {
	const q = `DELETE FROM sync_links WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting link id=%d: %w", id, err)
	}
	return nil
}

// TouchLinkRemote records the provider modification time observed during a
// pass, even when the change itself was deferred or failed. Keeps the
// pending-remote-changes projection honest without a network call.
func (s *Store) TouchLinkRemote(ctx context.Context, id int64, remoteUpdatedAt time.Time) error {
	const q = `UPDATE sync_links SET remote_updated_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, formatTime(remoteUpdatedAt), id); err != nil {
		return fmt.Errorf("touching link id=%d: %w", id, err)
	}
	return nil
}

func scanLink(sc scanner) (*Link, error) {
	var ln Link
	var remoteUpdated, syncedAt string

	err := sc.Scan(
		&ln.ID,
		&ln.UserID,
		&ln.LocalID,
		&ln.RemoteID,
		&ln.LastSyncHash,
		&remoteUpdated,
		&syncedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning link row: %w", err)
	}

	ln.RemoteUpdatedAt, _ = parseTime(remoteUpdated)
	ln.LastSyncedAt, _ = parseTime(syncedAt)

	return &ln, nil
}
