package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Wrap(KindTimeout, "store call exceeded its deadline", errors.New("context deadline exceeded"))
	wrapped := fmt.Errorf("loading booking: %w", base)

	if KindOf(wrapped) != KindTimeout {
		t.Fatalf("kind = %s, want timeout", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindTimeout) {
		t.Fatalf("IsKind(timeout) = false")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUpstream {
		t.Fatalf("unclassified errors must default to upstream_failure")
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	a := New(KindSlotUnavailable, "time slot is no longer available")
	b := New(KindSlotUnavailable, "different message")
	if !errors.Is(a, b) {
		t.Fatalf("same-kind errors must match via errors.Is")
	}
	if errors.Is(a, New(KindNotFound, "x")) {
		t.Fatalf("different kinds must not match")
	}
}
