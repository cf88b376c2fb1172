package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps test backoff delays negligible.
func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func transient(msg string) error {
	return &TransientError{Err: errors.New(msg)}
}

func TestPolicyDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("called %d times, want 1", calls)
	}
}

func TestPolicyDo_RetriesTransient(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return transient("rate limited")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("called %d times, want 2", calls)
	}
}

func TestPolicyDo_AllAttemptsFail(t *testing.T) {
	sentinel := transient("still rate limited")
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 3 {
		t.Errorf("called %d times, want 3", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("error chain does not contain sentinel: %v", err)
	}
	if !IsTransient(err) {
		t.Errorf("exhausted transient error lost its category: %v", err)
	}
}

func TestPolicyDo_AuthErrorNotRetried(t *testing.T) {
	sentinel := &AuthError{Err: errors.New("token revoked")}
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected auth error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("called %d times, want 1 (auth errors must not be retried)", calls)
	}
}

func TestPolicyDo_ValidationErrorNotRetried(t *testing.T) {
	sentinel := &ValidationError{Err: errors.New("missing start time")}
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected validation error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("called %d times, want 1 (validation errors must not be retried)", calls)
	}
}

func TestPolicyDo_ContextCancelledBeforeAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	calls := 0
	err := fastPolicy(3).Do(ctx, func() error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 0 {
		t.Errorf("called %d times, want 0 (context already cancelled)", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got: %v", err)
	}
}

func TestPolicyDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := Policy{MaxAttempts: 50, BaseDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond}
	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		return transient("fail")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls < 1 || calls >= 50 {
		t.Errorf("calls = %d, expected between 1 and 49", calls)
	}
}

func TestBackoffDelay_IncreasesAndCaps(t *testing.T) {
	p := DefaultPolicy()

	d0 := p.backoffDelay(0)
	d1 := p.backoffDelay(1)
	// With jitter, each value is uniform in [delay/2, delay).
	if d0 < 250*time.Millisecond || d0 >= 500*time.Millisecond {
		t.Errorf("d0 = %v, expected [250ms, 500ms)", d0)
	}
	if d1 < 500*time.Millisecond || d1 >= 1*time.Second {
		t.Errorf("d1 = %v, expected [500ms, 1s)", d1)
	}

	// At attempt 10 the raw delay would be 500ms * 2^10, but is capped.
	d := p.backoffDelay(10)
	if d >= p.MaxDelay {
		t.Errorf("delay = %v, expected < cap (%v) due to jitter", d, p.MaxDelay)
	}
	if d < p.MaxDelay/2 {
		t.Errorf("delay = %v, expected >= cap/2 (%v)", d, p.MaxDelay/2)
	}
}

func TestErrorCategories(t *testing.T) {
	wrapped := &TransientError{Err: errors.New("timeout")}
	if !IsTransient(wrapped) || IsAuth(wrapped) || IsValidation(wrapped) {
		t.Error("transient error misclassified")
	}
	if !IsAuth(&AuthError{Err: errors.New("401")}) {
		t.Error("auth error not detected")
	}
	if !IsValidation(&ValidationError{Err: errors.New("400")}) {
		t.Error("validation error not detected")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("plain error classified as transient")
	}
}
