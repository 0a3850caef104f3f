package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 3, Cooldown: time.Minute})
	failing := func() error { return errBoom }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) || called {
		t.Errorf("open breaker must reject without calling: err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 2, Cooldown: time.Minute})
	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })

	if cb.GetState() != StateClosed || cb.GetFailures() != 1 {
		t.Errorf("state = %v failures = %d", cb.GetState(), cb.GetFailures())
	}
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	notFound := errors.New("404")
	cb := NewCircuitBreaker(BreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, notFound) },
	})

	if err := cb.Execute(func() error { return notFound }); !errors.Is(err, notFound) {
		t.Fatalf("err = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("client errors must not trip the breaker, state = %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenTrialCall(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 10 * time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	now = now.Add(11 * time.Second)
	_ = cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatalf("failed trial call should reopen, state = %v", cb.GetState())
	}

	now = now.Add(11 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call err = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("successful trial call should close, state = %v", cb.GetState())
	}

	cb.Reset()
	if cb.GetFailures() != 0 {
		t.Error("Reset should clear failures")
	}
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

func TestCircuitBreaker_SingleTrialCallWhileHalfOpen(t *testing.T) {
	now := time.Now()
	var transitions []string
	cb := NewCircuitBreaker(BreakerConfig{
		MaxFailures: 1,
		Cooldown:    time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	now = now.Add(2 * time.Second)

	err := cb.Execute(func() error {
		if inner := cb.Execute(func() error { return nil }); !errors.Is(inner, ErrCircuitBreakerOpen) {
			t.Errorf("second caller during trial call: err = %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("trial call err = %v", err)
	}

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}
