package http

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:    threshold,
		RecoveryTimeout:     10 * time.Second,
		HalfOpenMaxRequests: 1,
		IsTransientError:    IsTransientHTTPError,
	})
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreakerInitialState(t *testing.T) {
	cb, _ := newTestBreaker(3)

	if got := cb.State("translate.example"); got != CircuitClosed {
		t.Errorf("State() = %v, want closed", got)
	}
	if err := cb.Allow("translate.example"); err != nil {
		t.Errorf("Allow() in closed state returned error: %v", err)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	testErr := errors.New("connection refused")

	cb.RecordFailure("translate.example", testErr)
	cb.RecordFailure("translate.example", testErr)
	if got := cb.State("translate.example"); got != CircuitClosed {
		t.Fatalf("State() after 2 failures = %v, want closed", got)
	}

	cb.RecordFailure("translate.example", testErr)
	if got := cb.State("translate.example"); got != CircuitOpen {
		t.Fatalf("State() after 3 failures = %v, want open", got)
	}
	if err := cb.Allow("translate.example"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb, _ := newTestBreaker(1)

	cb.RecordFailure("translate.example", &HTTPError{StatusCode: 400})
	if got := cb.State("translate.example"); got != CircuitClosed {
		t.Errorf("State() after 400 = %v, want closed", got)
	}

	cb.RecordFailure("translate.example", &HTTPError{StatusCode: 502})
	if got := cb.State("translate.example"); got != CircuitOpen {
		t.Errorf("State() after 502 = %v, want open", got)
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure("translate.example", errors.New("timeout"))

	clock.t = clock.t.Add(11 * time.Second)
	if got := cb.State("translate.example"); got != CircuitHalfOpen {
		t.Fatalf("State() after recovery timeout = %v, want half-open", got)
	}

	if err := cb.Allow("translate.example"); err != nil {
		t.Fatalf("first probe Allow() = %v, want nil", err)
	}
	if err := cb.Allow("translate.example"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second probe Allow() = %v, want ErrCircuitOpen", err)
	}

	cb.RecordSuccess("translate.example")
	if got := cb.State("translate.example"); got != CircuitClosed {
		t.Errorf("State() after successful probe = %v, want closed", got)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure("translate.example", errors.New("timeout"))

	clock.t = clock.t.Add(11 * time.Second)
	if err := cb.Allow("translate.example"); err != nil {
		t.Fatalf("probe Allow() = %v", err)
	}
	cb.RecordFailure("translate.example", errors.New("timeout"))

	if got := cb.State("translate.example"); got != CircuitOpen {
		t.Errorf("State() after failed probe = %v, want open", got)
	}
}

func TestCircuitBreakerHostsAreIndependent(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.RecordFailure("a.example", errors.New("down"))

	if err := cb.Allow("b.example"); err != nil {
		t.Errorf("Allow(b) = %v, want nil", err)
	}

	cb.Reset()
	if err := cb.Allow("a.example"); err != nil {
		t.Errorf("Allow(a) after Reset = %v, want nil", err)
	}
}

func TestNilCircuitBreakerAllowsEverything(t *testing.T) {
	var cb *CircuitBreaker
	if err := cb.Allow("x"); err != nil {
		t.Errorf("nil Allow() = %v", err)
	}
	cb.RecordFailure("x", errors.New("boom"))
	if got := cb.State("x"); got != CircuitClosed {
		t.Errorf("nil State() = %v", got)
	}
}
