package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBreaker(t *testing.T, opts ...Option) *Breaker {
	t.Helper()
	cfg := DefaultConfig("store")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	b, err := New(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []State
	b := testBreaker(t, WithStateHook(func(_ string, to State) {
		transitions = append(transitions, to)
	}))

	boom := errors.New("store down")
	for i := 0; i < 2; i++ {
		if err := b.Do(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want %v", i, err, boom)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	called := false
	err := b.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn ran while breaker was open")
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}
}

func TestCanceledCallsDoNotTrip(t *testing.T) {
	b := testBreaker(t)
	for i := 0; i < 5; i++ {
		_ = b.Do(context.Background(), func(context.Context) error { return context.Canceled })
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestCall(t *testing.T) {
	b := testBreaker(t)
	got, err := Call(context.Background(), b, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("Call = %d, %v; want 7, nil", got, err)
	}

	got, err = Call[int](context.Background(), nil, func(context.Context) (int, error) { return 3, nil })
	if err != nil || got != 3 {
		t.Errorf("nil breaker Call = %d, %v; want 3, nil", got, err)
	}
}

func TestStateCode(t *testing.T) {
	if StateClosed.Code() != 0 || StateOpen.Code() != 1 || StateHalfOpen.Code() != 2 {
		t.Error("unexpected state codes")
	}
}

func TestNewRequiresName(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error for unnamed breaker")
	}
}
