package eventloop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if !q.Post(func() { got = append(got, i) }) {
			t.Fatalf("Post %d rejected", i)
		}
	}
	q.Post(q.Stop)

	if err := q.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", got)
		}
	}
	if len(got) != 5 {
		t.Errorf("expected 5 closures to run, got %d", len(got))
	}
}

func TestQueuePostAfterStop(t *testing.T) {
	q := New(1)
	q.Stop()
	if q.Post(func() {}) {
		t.Error("expected Post to be rejected after Stop")
	}
	if err := q.Run(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestQueueCallAndAfterFunc(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	defer q.Stop()

	value := 0
	if !q.Call(func() { value = 42 }) {
		t.Fatal("Call rejected")
	}
	if value != 42 {
		t.Errorf("expected 42, got %d", value)
	}

	fired := make(chan struct{})
	q.AfterFunc(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc callback never ran")
	}
}

func TestQueueStopsOnContext(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	select {
	case <-q.Done():
	default:
		t.Error("expected queue to be stopped after Run returns")
	}
}
