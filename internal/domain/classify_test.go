package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassificationRoundTrips(t *testing.T) {
	base := errors.New("connection reset")
	err := Retryable(base)
	if !IsRetryable(err) {
		t.Fatal("expected retryable")
	}
	if IsFatal(err) {
		t.Fatal("did not expect fatal")
	}
	if !errors.Is(err, err) {
		t.Fatal("errors.Is should hold for itself")
	}
	if got := errors.Unwrap(err); got != base {
		t.Fatalf("unwrap = %v, want %v", got, base)
	}
}

func TestUnclassifiedErrorDefaultsFatal(t *testing.T) {
	err := errors.New("invariant violated: non-monotonic scenes")
	if !IsFatal(err) {
		t.Fatal("unclassified error should default to fatal, not be silently retried")
	}
}

func TestClassifiedErrorSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("stage failed: %w", Retryable(errors.New("deadlock")))
	if !IsRetryable(err) {
		t.Fatal("classification should survive fmt.Errorf %w wrapping")
	}
}

func TestTruncateError(t *testing.T) {
	long := make([]byte, MaxErrorLen+500)
	for i := range long {
		long[i] = 'x'
	}
	got := TruncateError(string(long))
	if len(got) != MaxErrorLen {
		t.Fatalf("len = %d, want %d", len(got), MaxErrorLen)
	}
	short := "boom"
	if TruncateError(short) != short {
		t.Fatal("short message should pass through unchanged")
	}
}
