// Package googlecal adapts the Google Calendar API v3 to the sync engine's
// provider contract. It provides an [Adapter] with window-bounded listing
// (pagination exhausted before returning), per-event create/update/delete,
// conversion between the API's event representation and [model.RemoteEvent],
// and classification of API failures into the [remote] error taxonomy.
package googlecal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/remote"
)

// listPageSize is the provider page size for window queries.
const listPageSize = 250

// Adapter provides sync-engine-oriented operations on one Google calendar.
// Create one with [New], or [NewWithService] for tests.
type Adapter struct {
	svc        *calendar.Service
	calendarID string
	policy     remote.Policy
	log        *slog.Logger
}

// New creates an Adapter for the given calendar. The token source is
// produced by the authentication layer; token refresh and expiry are its
// concern, not ours.
func New(ctx context.Context, ts oauth2.TokenSource, calendarID string, policy remote.Policy, logger *slog.Logger) (*Adapter, error) {
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &Adapter{svc: svc, calendarID: calendarID, policy: policy, log: logger}, nil
}

// NewWithService creates an Adapter with a caller-supplied service.
// Intended for tests pointing the client at a local HTTP server.
func NewWithService(svc *calendar.Service, calendarID string, policy remote.Policy, logger *slog.Logger) *Adapter {
	return &Adapter{svc: svc, calendarID: calendarID, policy: policy, log: logger}
}

// TestConnection validates the calendar is reachable with the supplied
// credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	err := a.policy.Do(ctx, func() error {
		_, callErr := a.svc.Calendars.Get(a.calendarID).Context(ctx).Do()
		return classify(callErr)
	})
	if err != nil {
		return fmt.Errorf("checking calendar %s: %w", a.calendarID, err)
	}
	return nil
}

// List fetches all events in the window, following pagination until the
// provider reports no further pages. Cancelled events are included so the
// engine can observe remote deletions; events the API returns in a shape we
// cannot map are skipped with a warning.
func (a *Adapter) List(ctx context.Context, w model.Window) ([]model.RemoteEvent, error) {
	var out []model.RemoteEvent
	pageToken := ""
	for {
		var page *calendar.Events
		err := a.policy.Do(ctx, func() error {
			call := a.svc.Events.List(a.calendarID).
				TimeMin(w.From.UTC().Format(time.RFC3339)).
				TimeMax(w.To.UTC().Format(time.RFC3339)).
				SingleEvents(true).
				ShowDeleted(true).
				MaxResults(listPageSize).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var callErr error
			page, callErr = call.Do()
			return classify(callErr)
		})
		if err != nil {
			return nil, fmt.Errorf("listing events in %s: %w", a.calendarID, err)
		}

		for _, item := range page.Items {
			rev, convErr := remoteEventFromAPI(item)
			if convErr != nil {
				a.log.Warn("skipping unmappable remote event", "event_id", item.Id, "error", convErr)
				continue
			}
			out = append(out, rev)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return out, nil
		}
	}
}

// Create pushes a new event and returns the provider-assigned id.
func (a *Adapter) Create(ctx context.Context, ev *model.Event) (string, error) {
	body, err := eventToAPI(ev)
	if err != nil {
		return "", err
	}

	var created *calendar.Event
	err = a.policy.Do(ctx, func() error {
		var callErr error
		created, callErr = a.svc.Events.Insert(a.calendarID, body).Context(ctx).Do()
		return classify(callErr)
	})
	if err != nil {
		return "", fmt.Errorf("creating %q in %s: %w", ev.Title, a.calendarID, err)
	}
	return created.Id, nil
}

// Update overwrites the remote event identified by remoteID.
func (a *Adapter) Update(ctx context.Context, remoteID string, ev *model.Event) error {
	body, err := eventToAPI(ev)
	if err != nil {
		return err
	}

	err = a.policy.Do(ctx, func() error {
		_, callErr := a.svc.Events.Update(a.calendarID, remoteID, body).Context(ctx).Do()
		return classify(callErr)
	})
	if err != nil {
		return fmt.Errorf("updating %q in %s: %w", remoteID, a.calendarID, err)
	}
	return nil
}

// Delete removes the remote event. An event the provider no longer knows
// counts as deleted.
func (a *Adapter) Delete(ctx context.Context, remoteID string) error {
	err := a.policy.Do(ctx, func() error {
		callErr := a.svc.Events.Delete(a.calendarID, remoteID).Context(ctx).Do()
		if isGone(callErr) {
			return nil
		}
		return classify(callErr)
	})
	if err != nil {
		return fmt.Errorf("deleting %q from %s: %w", remoteID, a.calendarID, err)
	}
	return nil
}
