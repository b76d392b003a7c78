package motion

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/logging"
)

// TickerFeed polls a Reader on a ticker. Each subscription owns one
// polling goroutine.
type TickerFeed struct {
	reader Reader
	log    *logrus.Entry

	mu       sync.Mutex
	interval time.Duration
	subs     map[*tickerSub]struct{}
}

// NewTickerFeed creates a feed polling reader every interval.
func NewTickerFeed(reader Reader, interval time.Duration) *TickerFeed {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &TickerFeed{
		reader:   reader,
		log:      logging.For("motion-feed"),
		interval: interval,
		subs:     make(map[*tickerSub]struct{}),
	}
}

// SetInterval changes the polling period of current and future
// subscriptions.
func (f *TickerFeed) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interval = d
	for s := range f.subs {
		s.ticker.Reset(d)
	}
}

// Subscribe starts polling and delivering samples to fn.
func (f *TickerFeed) Subscribe(fn func(Sample)) (Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("motion: nil sample callback")
	}

	f.mu.Lock()
	s := &tickerSub{
		feed:   f,
		ticker: time.NewTicker(f.interval),
		stop:   make(chan struct{}),
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go s.run(fn)
	return s, nil
}

// Active returns the number of live subscriptions.
func (f *TickerFeed) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type tickerSub struct {
	feed   *TickerFeed
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (s *tickerSub) run(fn func(Sample)) {
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			sample, err := s.feed.reader.ReadSample()
			if err != nil {
				s.feed.log.Warnf("read error: %v", err)
				continue
			}
			fn(sample)
		}
	}
}

// Release stops the polling goroutine. It does not wait for an in-flight
// delivery, which may be blocked posting to the caller's own loop.
func (s *tickerSub) Release() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.ticker.Stop()
		s.feed.mu.Unlock()

		close(s.stop)
	})
}
