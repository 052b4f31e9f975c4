package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return now }

	transient := &StatusError{Service: "nih", StatusCode: 503}

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("call %d rejected: %v", i, err)
		}
		b.Record(transient)
	}
	if !b.Open() {
		t.Fatal("expected breaker to be open")
	}
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}

	// After the cooldown a single trial call is allowed.
	now = now.Add(time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("trial call rejected: %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatal("expected concurrent trial call to be rejected")
	}

	b.Record(nil)
	if b.Open() {
		t.Fatal("expected breaker to close after successful trial call")
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	b.Record(MarkTransient(errors.New("down")))
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("trial call rejected: %v", err)
	}
	b.Record(MarkTransient(errors.New("still down")))

	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected reopen, got %v", err)
	}
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	b.Record(&StatusError{Service: "openalex", StatusCode: 404})
	if b.Open() {
		t.Fatal("permanent errors should not open the breaker")
	}
}
