package googlecal

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/dhkang/photocal/internal/remote"
)

// classify maps a raw Google API failure into the [remote] taxonomy so the
// retry policy and the sync engine can act on the category instead of the
// status code.
//
//   - 401, and 403 without a rate-limit reason → AuthError (aborts the run)
//   - 403 rate-limit reasons, 429, 5xx, and network-level failures →
//     TransientError (retried, then recorded per event)
//   - remaining 4xx → ValidationError (event skipped, run continues)
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		// Transport-level failure: DNS, connection reset, timeout.
		return &remote.TransientError{Err: err}
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		return &remote.AuthError{Err: err}
	case gerr.Code == http.StatusForbidden:
		if isRateLimited(gerr) {
			return &remote.TransientError{Err: err}
		}
		return &remote.AuthError{Err: err}
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return &remote.TransientError{Err: err}
	case gerr.Code >= 400:
		return &remote.ValidationError{Err: err}
	}
	return err
}

// isRateLimited reports whether a 403 carries one of the calendar API's
// quota reasons rather than a permission problem.
func isRateLimited(gerr *googleapi.Error) bool {
	for _, e := range gerr.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

// isGone reports whether err means the resource no longer exists (404) or
// was already deleted (410).
func isGone(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}
