package intake

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/store"
)

const testUser = "u1"

var start = time.Date(2026, 7, 4, 18, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, threshold float64) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, threshold, slog.Default()), st
}

func TestSubmit_LowConfidenceStaysPending(t *testing.T) {
	svc, _ := newTestService(t, 0.9)

	ev, err := svc.Submit(context.Background(), testUser, Candidate{
		Title: "School play", Start: start, Confidence: 0.6,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Status != model.StatusPending || ev.Visible {
		t.Errorf("status = %s visible = %v, want pending/invisible", ev.Status, ev.Visible)
	}
	if ev.PushEligible() {
		t.Error("pending extraction must not be push eligible")
	}
}

func TestSubmit_HighConfidenceAutoConfirms(t *testing.T) {
	svc, _ := newTestService(t, 0.9)

	ev, err := svc.Submit(context.Background(), testUser, Candidate{
		Title: "School play", Start: start, Confidence: 0.95,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Status != model.StatusConfirmed || !ev.Visible {
		t.Errorf("status = %s visible = %v, want confirmed/visible", ev.Status, ev.Visible)
	}
	if !ev.PushEligible() {
		t.Error("auto-confirmed event should be push eligible")
	}
}

func TestSubmit_ThresholdIsInclusive(t *testing.T) {
	svc, _ := newTestService(t, 0.9)

	ev, err := svc.Submit(context.Background(), testUser, Candidate{
		Title: "School play", Start: start, Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Status != model.StatusConfirmed {
		t.Errorf("score equal to threshold should auto-confirm, got %s", ev.Status)
	}
}

func TestSubmit_RejectsBadCandidates(t *testing.T) {
	svc, _ := newTestService(t, 0.9)
	ctx := context.Background()

	cases := []Candidate{
		{Start: start, Confidence: 0.5},                         // no title
		{Title: "No start", Confidence: 0.5},                    // no start
		{Title: "Bad score", Start: start, Confidence: 1.5},     // out of range
		{Title: "Negative score", Start: start, Confidence: -1}, // out of range
	}
	for _, c := range cases {
		if _, err := svc.Submit(ctx, testUser, c); err == nil {
			t.Errorf("Submit(%+v) succeeded, want error", c)
		}
	}
}

func TestConfirm_PromotesPendingEvent(t *testing.T) {
	svc, st := newTestService(t, 0.9)
	ctx := context.Background()

	ev, err := svc.Submit(ctx, testUser, Candidate{Title: "School play", Start: start, Confidence: 0.4})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Confirm(ctx, testUser, ev.LocalID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, err := st.GetEvent(ctx, testUser, ev.LocalID)
	if err != nil || got == nil {
		t.Fatalf("loading event: %v", err)
	}
	if got.Status != model.StatusConfirmed || !got.Visible {
		t.Errorf("status = %s visible = %v, want confirmed/visible", got.Status, got.Visible)
	}
}

func TestConfirm_NotFound(t *testing.T) {
	svc, _ := newTestService(t, 0.9)
	if err := svc.Confirm(context.Background(), testUser, "missing"); err == nil {
		t.Fatal("expected error")
	}
}

func TestReject_DiscardsPendingEvent(t *testing.T) {
	svc, st := newTestService(t, 0.9)
	ctx := context.Background()

	ev, err := svc.Submit(ctx, testUser, Candidate{Title: "Misread flyer", Start: start, Confidence: 0.2})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Reject(ctx, testUser, ev.LocalID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	got, _ := st.GetEvent(ctx, testUser, ev.LocalID)
	if got.Status != model.StatusRejected || got.Visible {
		t.Errorf("status = %s visible = %v, want rejected/invisible", got.Status, got.Visible)
	}
	if got.PushEligible() {
		t.Error("rejected event must not be push eligible")
	}
}

func TestReject_ConfirmedEventRefused(t *testing.T) {
	svc, _ := newTestService(t, 0.5)
	ctx := context.Background()

	ev, err := svc.Submit(ctx, testUser, Candidate{Title: "School play", Start: start, Confidence: 0.8})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Reject(ctx, testUser, ev.LocalID); err == nil {
		t.Fatal("rejecting a confirmed event should fail")
	}
}
