// Package intake accepts events extracted from photos and gates them
// behind a review step. Extractions start out pending and invisible;
// only a user confirmation (or a confidence score clearing the
// auto-confirm threshold) makes them visible and eligible for sync.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhkang/photocal/internal/model"
)

// Candidate is one event proposed by the photo extraction pipeline.
type Candidate struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	AllDay      bool

	// Confidence is the extraction score in [0, 1].
	Confidence float64
}

// Store is the slice of persistence the intake service needs.
// Implemented by [store.Store].
type Store interface {
	InsertEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, userID, localID string) (*model.Event, error)
	SetEventStatus(ctx context.Context, userID, localID string, status model.EventStatus, visible bool, at time.Time) error
}

// Service applies the review workflow to extracted events.
type Service struct {
	store     Store
	threshold float64
	log       *slog.Logger
}

// NewService creates a Service. threshold is the auto-confirm bar; a
// candidate scoring at or above it skips manual review.
func NewService(st Store, threshold float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, threshold: threshold, log: logger}
}

// Submit stores a candidate. It comes back pending and invisible
// unless its confidence clears the auto-confirm threshold.
func (s *Service) Submit(ctx context.Context, userID string, c Candidate) (*model.Event, error) {
	if c.Title == "" {
		return nil, fmt.Errorf("candidate has no title")
	}
	if c.Start.IsZero() {
		return nil, fmt.Errorf("candidate %q has no start time", c.Title)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return nil, fmt.Errorf("candidate %q has confidence %v outside [0, 1]", c.Title, c.Confidence)
	}

	ev := &model.Event{
		UserID:      userID,
		Title:       c.Title,
		Description: c.Description,
		Location:    c.Location,
		Start:       c.Start,
		End:         c.End,
		AllDay:      c.AllDay,
		Confidence:  c.Confidence,
		Status:      model.StatusPending,
		Visible:     false,
	}
	if c.Confidence >= s.threshold {
		ev.Status = model.StatusConfirmed
		ev.Visible = true
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("storing candidate: %w", err)
	}
	s.log.Info("candidate submitted",
		"user_id", userID,
		"local_id", ev.LocalID,
		"status", ev.Status.String(),
		"confidence", c.Confidence)
	return ev, nil
}

// Confirm accepts a pending extraction, making it visible and
// eligible for the next sync pass.
func (s *Service) Confirm(ctx context.Context, userID, localID string) error {
	ev, err := s.store.GetEvent(ctx, userID, localID)
	if err != nil {
		return err
	}
	if ev == nil {
		return fmt.Errorf("event %s not found", localID)
	}
	if ev.Status == model.StatusConfirmed && ev.Visible {
		return nil
	}
	return s.store.SetEventStatus(ctx, userID, localID, model.StatusConfirmed, true, time.Now().UTC())
}

// Reject discards a pending extraction. Confirmed events cannot be
// rejected; once an event may have reached the provider it has to be
// deleted so the removal propagates.
func (s *Service) Reject(ctx context.Context, userID, localID string) error {
	ev, err := s.store.GetEvent(ctx, userID, localID)
	if err != nil {
		return err
	}
	if ev == nil {
		return fmt.Errorf("event %s not found", localID)
	}
	if ev.Status != model.StatusPending {
		return fmt.Errorf("event %s is %s, only pending events can be rejected", localID, ev.Status)
	}
	return s.store.SetEventStatus(ctx, userID, localID, model.StatusRejected, false, time.Now().UTC())
}
