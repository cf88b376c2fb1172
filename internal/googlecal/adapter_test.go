package googlecal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/remote"
)

var testWindow = model.Window{
	From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	To:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
}

func testPolicy() remote.Policy {
	return remote.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

// newTestAdapter points a real calendar client at a local server.
func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("creating service: %v", err)
	}
	return NewWithService(svc, "primary", testPolicy(), slog.Default())
}

func TestList_ExhaustsPagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{
				"items": [
					{"id": "g-1", "summary": "A", "updated": "2026-01-02T00:00:00Z",
					 "start": {"dateTime": "2026-01-10T09:00:00Z"},
					 "end": {"dateTime": "2026-01-10T10:00:00Z"}},
					{"id": "g-2", "summary": "B", "updated": "2026-01-02T00:00:00Z",
					 "start": {"date": "2026-01-15"}, "end": {"date": "2026-01-16"}}
				],
				"nextPageToken": "page2"
			}`)
		case "page2":
			fmt.Fprint(w, `{
				"items": [
					{"id": "g-3", "summary": "C", "status": "cancelled",
					 "updated": "2026-01-03T00:00:00Z"}
				]
			}`)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
			http.Error(w, "bad token", http.StatusBadRequest)
		}
	})

	a := newTestAdapter(t, handler)
	events, err := a.List(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 across both pages", len(events))
	}
	if events[1].RemoteID != "g-2" || !events[1].AllDay {
		t.Errorf("all-day event mapped wrong: %+v", events[1])
	}
	if !events[2].Deleted {
		t.Error("cancelled event not flagged deleted")
	}
}

func TestList_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, `{"error": {"code": 503}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": []}`)
	})

	a := newTestAdapter(t, handler)
	if _, err := a.List(context.Background(), testWindow); err != nil {
		t.Fatalf("list after transient failure: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestList_AuthFailureNotRetried(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error": {"code": 401, "message": "invalid credentials"}}`, http.StatusUnauthorized)
	})

	a := newTestAdapter(t, handler)
	_, err := a.List(context.Background(), testWindow)
	if !remote.IsAuth(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (auth failures must not be retried)", attempts)
	}
}

func TestCreate_ReturnsProviderID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "g-new"}`)
	})

	a := newTestAdapter(t, handler)
	id, err := a.Create(context.Background(), &model.Event{
		Title: "Standup",
		Start: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "g-new" {
		t.Errorf("id = %q, want g-new", id)
	}
}

func TestDelete_AlreadyGoneIsSuccess(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 404}}`, http.StatusNotFound)
	})

	a := newTestAdapter(t, handler)
	if err := a.Delete(context.Background(), "g-gone"); err != nil {
		t.Errorf("deleting an already-gone event should succeed, got %v", err)
	}
}
