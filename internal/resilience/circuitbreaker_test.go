package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  2,
		ResetTimeout: 50 * time.Millisecond,
		HalfOpenMax:  1,
	})

	boom := errors.New("boom")
	fail := func() error { return boom }

	if err := cb.Execute(fail); !errors.Is(err, boom) {
		t.Fatalf("1st failure: got %v, want boom", err)
	}
	if err := cb.Execute(fail); !errors.Is(err, boom) {
		t.Fatalf("2nd failure: got %v, want boom", err)
	}

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want StateOpen", cb.State())
	}
	if err := cb.Execute(func() error { t.Fatal("fn should not run while open"); return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute while open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_ClosesAfterSuccessfulProbe(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  1,
	})

	boom := errors.New("boom")
	_ = cb.Execute(func() error { return boom })
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want StateOpen", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe call: got %v, want nil", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() after successful probe = %v, want StateClosed", cb.State())
	}
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 3})
	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("Execute: got %v, want nil", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want StateClosed", cb.State())
	}
}
