package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Authorization("router.direct", "sender and receiver share no business")
	wrapped := fmt.Errorf("route: %w", base)
	if got := KindOf(wrapped); got != KindAuthorization {
		t.Fatalf("KindOf: want=%s got=%s", KindAuthorization, got)
	}
	if !Is(wrapped, KindAuthorization) {
		t.Fatalf("Is should match through fmt wrapping")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("untagged errors should be internal")
	}
}

func TestPublicHidesPersistenceCause(t *testing.T) {
	err := Wrap(KindPersistence, "delivery.persist", errors.New("pq: connection refused"))
	if got := Public(err); got != "message could not be stored; retry" {
		t.Fatalf("unexpected public message: %q", got)
	}
	if !errors.Is(err, errors.Unwrap(err)) {
		t.Fatalf("cause should stay reachable")
	}
	if got := Public(NotFound("ticket.get", "ticket 9 not found")); got != "ticket 9 not found" {
		t.Fatalf("unexpected public message: %q", got)
	}
}
