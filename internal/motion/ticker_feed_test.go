package motion

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingReader struct {
	n    atomic.Int64
	fail atomic.Bool
}

func (r *countingReader) ReadSample() (Sample, error) {
	if r.fail.Load() {
		return Sample{}, errors.New("bus error")
	}
	n := r.n.Add(1)
	return Sample{Source: "test", X: float64(n)}, nil
}

func TestTickerFeedDeliversUntilRelease(t *testing.T) {
	reader := &countingReader{}
	feed := NewTickerFeed(reader, time.Hour)
	feed.SetInterval(2 * time.Millisecond)

	got := make(chan Sample, 16)
	sub, err := feed.Subscribe(func(s Sample) {
		select {
		case got <- s:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if feed.Active() != 1 {
		t.Errorf("expected 1 active subscription, got %d", feed.Active())
	}

	for i := 0; i < 3; i++ {
		select {
		case s := <-got:
			if s.Source != "test" {
				t.Errorf("expected source test, got %q", s.Source)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for samples")
		}
	}

	sub.Release()
	sub.Release()
	if feed.Active() != 0 {
		t.Errorf("expected 0 active subscriptions after release, got %d", feed.Active())
	}
}

func TestTickerFeedSkipsReadErrors(t *testing.T) {
	reader := &countingReader{}
	reader.fail.Store(true)
	feed := NewTickerFeed(reader, 2*time.Millisecond)

	delivered := atomic.Int64{}
	sub, err := feed.Subscribe(func(Sample) { delivered.Add(1) })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Release()

	time.Sleep(20 * time.Millisecond)
	if delivered.Load() != 0 {
		t.Errorf("expected no deliveries while reads fail, got %d", delivered.Load())
	}

	if _, err := feed.Subscribe(nil); err == nil {
		t.Error("expected error for nil callback")
	}
}
