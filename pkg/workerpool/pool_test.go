package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errPermanent = errors.New("permanent")

func newPool(t *testing.T, fn WorkerFunc) *Pool {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.RetryDelay = time.Millisecond
	cfg.Retryable = func(err error) bool { return !errors.Is(err, errPermanent) }
	p, err := New(cfg, fn, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestRun_ResultsInTaskOrder(t *testing.T) {
	p := newPool(t, func(ctx context.Context, task *Task) error {
		if task.Payload.(int)%2 == 1 {
			return errPermanent
		}
		return nil
	})

	tasks := make([]*Task, 10)
	for i := range tasks {
		tasks[i] = &Task{ID: string(rune('a' + i)), Payload: i}
	}

	results, err := p.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, r := range results {
		if r.TaskID != tasks[i].ID {
			t.Errorf("results[%d].TaskID = %s, want %s", i, r.TaskID, tasks[i].ID)
		}
		if wantErr := i%2 == 1; (r.Err != nil) != wantErr {
			t.Errorf("results[%d].Err = %v", i, r.Err)
		}
	}
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	var calls int32
	p := newPool(t, func(ctx context.Context, task *Task) error {
		atomic.AddInt32(&calls, 1)
		return errPermanent
	})

	results, err := p.Run(context.Background(), []*Task{{ID: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Attempts != 1 || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("attempts = %d, calls = %d; want 1", results[0].Attempts, calls)
	}
	if !errors.Is(results[0].Err, errPermanent) {
		t.Errorf("err = %v", results[0].Err)
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	var calls int32
	p := newPool(t, func(ctx context.Context, task *Task) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("sink unavailable")
		}
		return nil
	})

	results, err := p.Run(context.Background(), []*Task{{ID: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err != nil || results[0].Attempts != 3 {
		t.Errorf("result = %+v, want success on attempt 3", results[0])
	}
	if s := p.Stats(); s.Retried != 2 || s.Succeeded != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRetriesExhausted(t *testing.T) {
	p := newPool(t, func(ctx context.Context, task *Task) error {
		return errors.New("still down")
	})
	results, err := p.Run(context.Background(), []*Task{{ID: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err == nil || results[0].Attempts != DefaultConfig().MaxRetries+1 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p, err := New(DefaultConfig(), func(context.Context, *Task) error { return nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Submit(&Task{ID: "late"}); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
	if _, err := p.Run(context.Background(), []*Task{{ID: "late"}}); !errors.Is(err, ErrStopped) {
		t.Errorf("Run err = %v, want ErrStopped", err)
	}
}

func TestNewRequiresFunc(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil); err == nil {
		t.Error("expected error")
	}
}
