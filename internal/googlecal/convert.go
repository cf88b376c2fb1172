package googlecal

import (
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/remote"
)

const (
	statusCancelled = "cancelled"

	dateLayout = "2006-01-02"
)

// remoteEventFromAPI converts an API event to a [model.RemoteEvent].
//
// Mapping rules: all-day events carry date-only bounds (the API's exclusive
// end date becomes an inclusive local end, collapsing single-day events to
// no end); timed events carry full timestamps; an unspecified end maps to a
// nil end.
func remoteEventFromAPI(item *calendar.Event) (model.RemoteEvent, error) {
	rev := model.RemoteEvent{
		RemoteID:    item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Deleted:     item.Status == statusCancelled,
	}

	if item.Updated != "" {
		updated, err := time.Parse(time.RFC3339, item.Updated)
		if err != nil {
			return rev, fmt.Errorf("parsing updated time of %s: %w", item.Id, err)
		}
		rev.UpdatedAt = updated
	}

	// Cancelled events may arrive without bounds; id + flag is all the
	// engine needs for them.
	if item.Start == nil {
		if rev.Deleted {
			return rev, nil
		}
		return rev, fmt.Errorf("event %s has no start", item.Id)
	}

	if item.Start.Date != "" {
		rev.AllDay = true
		start, err := time.Parse(dateLayout, item.Start.Date)
		if err != nil {
			return rev, fmt.Errorf("parsing start date of %s: %w", item.Id, err)
		}
		rev.Start = start

		if item.End != nil && item.End.Date != "" && !item.EndTimeUnspecified {
			exclusive, err := time.Parse(dateLayout, item.End.Date)
			if err != nil {
				return rev, fmt.Errorf("parsing end date of %s: %w", item.Id, err)
			}
			end := exclusive.AddDate(0, 0, -1)
			if end.After(start) {
				rev.End = &end
			}
		}
		return rev, nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return rev, fmt.Errorf("parsing start time of %s: %w", item.Id, err)
	}
	rev.Start = start

	if item.End != nil && item.End.DateTime != "" && !item.EndTimeUnspecified {
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return rev, fmt.Errorf("parsing end time of %s: %w", item.Id, err)
		}
		if end.After(start) {
			rev.End = &end
		}
	}
	return rev, nil
}

// eventToAPI converts a local event to the API representation for push.
// The API always requires an end, so an open-ended event is pushed with
// end = start and the unspecified flag set; all-day ends are widened to the
// API's exclusive date.
func eventToAPI(ev *model.Event) (*calendar.Event, error) {
	if ev.Title == "" {
		return nil, &remote.ValidationError{Err: fmt.Errorf("event %s has no title", ev.LocalID)}
	}
	if ev.Start.IsZero() {
		return nil, &remote.ValidationError{Err: fmt.Errorf("event %q has no start", ev.Title)}
	}

	out := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
	}

	if ev.AllDay {
		out.Start = &calendar.EventDateTime{Date: ev.Start.Format(dateLayout)}
		endDate := ev.Start
		if ev.End != nil && ev.End.After(ev.Start) {
			endDate = *ev.End
		}
		out.End = &calendar.EventDateTime{Date: endDate.AddDate(0, 0, 1).Format(dateLayout)}
		return out, nil
	}

	out.Start = &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)}
	if ev.End != nil && ev.End.After(ev.Start) {
		out.End = &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339)}
	} else {
		out.End = &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)}
		out.EndTimeUnspecified = true
	}
	return out, nil
}
