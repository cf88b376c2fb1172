// Package model defines shared types used across the sync engine, the local
// event store, and the provider adapter.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// EventStatus tracks the lifecycle of a local event. Events extracted from
// photos start as Pending and only become sync-eligible once confirmed.
type EventStatus int

const (
	// StatusPending means the event was extracted but not yet reviewed.
	StatusPending EventStatus = iota
	// StatusConfirmed means the event was accepted by the user (or passed
	// the auto-confirm confidence threshold).
	StatusConfirmed
	// StatusModified means the user edited the event after confirmation.
	StatusModified
	// StatusRejected means the user discarded the extracted event.
	StatusRejected
)

// String returns the canonical lowercase label stored in the database.
func (s EventStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusModified:
		return "modified"
	case StatusRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// ParseEventStatus maps a stored label back to its EventStatus. Unknown
// labels are rejected rather than silently treated as pending.
func ParseEventStatus(s string) (EventStatus, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "modified":
		return StatusModified, nil
	case "rejected":
		return StatusRejected, nil
	}
	return StatusPending, fmt.Errorf("unknown event status %q", s)
}

// Event is a calendar event owned by the local store. Sync metadata
// (RemoteID, LastSyncedAt) lives on the same row as the content so pulls can
// stamp both atomically.
type Event struct {
	// LocalID is the store-assigned UUID.
	LocalID string

	// UserID partitions all events, links, and conflicts per user.
	UserID string

	Title       string
	Description string
	Location    string

	// Start is the event start. For all-day events only the calendar date
	// is meaningful.
	Start time.Time

	// End is the event end. Nil means open-ended.
	End *time.Time

	// AllDay marks a date-only event with no time component.
	AllDay bool

	Status  EventStatus
	Visible bool

	// Confidence is the OCR/AI extraction score in [0, 1]. Zero for
	// manually entered events.
	Confidence float64

	// DeletedAt marks a soft delete. Nil means live.
	DeletedAt *time.Time

	// RemoteID is the provider-assigned id once the event has been pushed
	// or pulled. An event with a RemoteID always has a non-nil
	// LastSyncedAt.
	RemoteID     string
	LastSyncedAt *time.Time

	// LocalUpdatedAt is bumped on every local content mutation. Compared
	// against the sync link stamp to detect local edits.
	LocalUpdatedAt time.Time
}

// Deleted reports whether the event has been soft-deleted.
func (e *Event) Deleted() bool {
	return e.DeletedAt != nil
}

// PushEligible reports whether the event may be pushed to the provider.
// Pending and rejected extractions never leave the local store.
func (e *Event) PushEligible() bool {
	return e.Visible && !e.Deleted() &&
		e.Status != StatusPending && e.Status != StatusRejected
}

// ContentHash returns the normalized content digest used for change
// detection against the sync link snapshot.
func (e *Event) ContentHash() string {
	return contentHash(e.Title, e.Description, e.Location, e.Start, e.End, e.AllDay)
}

// RemoteEvent is the provider's view of an event for one sync pass. It is
// never persisted beyond the pass that fetched it.
type RemoteEvent struct {
	// RemoteID is the provider-assigned id.
	RemoteID string

	Title       string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	AllDay      bool

	// UpdatedAt is the provider-reported last modification time.
	UpdatedAt time.Time

	// Deleted is set when the provider reports the event as cancelled.
	Deleted bool
}

// ContentHash returns the same normalized digest as [Event.ContentHash], so
// a local event and its remote counterpart hash identically when their
// content matches.
func (r *RemoteEvent) ContentHash() string {
	return contentHash(r.Title, r.Description, r.Location, r.Start, r.End, r.AllDay)
}

// Window bounds one sync pass. From is inclusive, To exclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// Validate checks that the window is non-empty and correctly ordered.
func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("sync window bounds must be set")
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("sync window from %s is not before to %s", w.From, w.To)
	}
	return nil
}

const dateOnly = "2006-01-02"

// contentHash digests the fields that matter for change detection.
// Modification timestamps are intentionally excluded — they change on every
// save and are only consulted for conflict resolution. All-day events hash
// their calendar date, timed events their UTC instant, so the digest is
// stable across provider round-trips.
func contentHash(title, description, location string, start time.Time, end *time.Time, allDay bool) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte("|"))
	h.Write([]byte(description))
	h.Write([]byte("|"))
	h.Write([]byte(location))
	h.Write([]byte("|"))
	if allDay {
		h.Write([]byte(start.Format(dateOnly)))
		h.Write([]byte("|"))
		// A single-day bound carries no information beyond the start date.
		if end != nil && end.Format(dateOnly) != start.Format(dateOnly) {
			h.Write([]byte(end.Format(dateOnly)))
		}
	} else {
		h.Write([]byte(start.UTC().Format(time.RFC3339)))
		h.Write([]byte("|"))
		if end != nil {
			h.Write([]byte(end.UTC().Format(time.RFC3339)))
		}
	}
	h.Write([]byte("|"))
	_, _ = fmt.Fprintf(h, "%t", allDay)
	return hex.EncodeToString(h.Sum(nil))
}
