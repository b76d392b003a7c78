package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/logging"
)

// DefaultWarmup is how long the monitor waits after Start before arming
// the gate, letting the device settle and the camera pipeline come up.
const DefaultWarmup = 2000 * time.Millisecond

var (
	// ErrNotConfigured is returned by EnableGate before Configure succeeded.
	ErrNotConfigured = errors.New("motion: monitor not configured")
	// ErrGateInhibited is returned by EnableGate when the owner's arm
	// check refuses arming.
	ErrGateInhibited = errors.New("motion: gate inhibited")
)

// Dispatcher moves feed callbacks and timers onto the owner's event loop.
type Dispatcher interface {
	Post(fn func()) bool
	AfterFunc(d time.Duration, fn func()) *time.Timer
}

// Monitor turns a raw acceleration feed into a one-shot "device is still"
// signal. All methods except the feed callback must run on the
// dispatcher's loop.
type Monitor struct {
	feed Feed
	loop Dispatcher
	log  *logrus.Entry

	interval   time.Duration
	tolerance  float64
	configured bool

	gate    bool
	sub     Subscription
	last    Sample
	hasLast bool
	warmup  *time.Timer

	onStill  func()
	armCheck func() error
}

// NewMonitor creates a monitor reading from feed. onStill runs on the loop
// each time stillness is detected while the gate is armed.
func NewMonitor(feed Feed, loop Dispatcher, onStill func()) *Monitor {
	return &Monitor{
		feed:    feed,
		loop:    loop,
		log:     logging.For("motion"),
		onStill: onStill,
	}
}

// SetArmCheck installs a guard consulted by EnableGate. A non-nil error
// keeps the gate disabled.
func (m *Monitor) SetArmCheck(check func() error) {
	m.armCheck = check
}

// Configure sets the feed polling interval and per-axis tolerance.
func (m *Monitor) Configure(interval time.Duration, tolerance float64) error {
	if interval <= 0 {
		return fmt.Errorf("motion: sample interval must be positive, got %v", interval)
	}
	if tolerance <= 0 {
		return fmt.Errorf("motion: tolerance must be positive, got %v", tolerance)
	}
	m.interval = interval
	m.tolerance = tolerance
	m.configured = true
	return nil
}

// Start arms the gate once the warm-up delay has elapsed.
func (m *Monitor) Start(warmup time.Duration) {
	if m.warmup != nil {
		m.warmup.Stop()
	}
	m.log.Debugf("arming gate in %v", warmup)
	m.warmup = m.loop.AfterFunc(warmup, func() {
		m.warmup = nil
		if err := m.EnableGate(); err != nil {
			m.log.Warnf("gate not armed after warm-up: %v", err)
		}
	})
}

// EnableGate subscribes to the feed and starts evaluating stillness.
// The next sample only seeds the comparison.
func (m *Monitor) EnableGate() error {
	if m.gate {
		return nil
	}
	if !m.configured {
		return ErrNotConfigured
	}
	if m.armCheck != nil {
		if err := m.armCheck(); err != nil {
			return fmt.Errorf("%w: %v", ErrGateInhibited, err)
		}
	}

	m.feed.SetInterval(m.interval)
	sub, err := m.feed.Subscribe(func(s Sample) {
		m.loop.Post(func() { m.OnSample(s) })
	})
	if err != nil {
		return fmt.Errorf("motion: subscribe feed: %w", err)
	}

	m.sub = sub
	m.gate = true
	m.hasLast = false
	m.log.Infof("gate armed (interval=%v tolerance=%.3f)", m.interval, m.tolerance)
	return nil
}

// DisableGate stops evaluation and releases the feed subscription.
func (m *Monitor) DisableGate() {
	if m.sub != nil {
		m.sub.Release()
		m.sub = nil
	}
	if m.gate {
		m.gate = false
		m.log.Info("gate disarmed")
	}
}

// OnSample records s and, with the gate armed and a previous sample
// present, fires the stillness callback once before disarming.
func (m *Monitor) OnSample(s Sample) {
	prev, hadPrev := m.last, m.hasLast
	m.last = s
	m.hasLast = true

	if !m.gate || !hadPrev {
		return
	}
	if !Still(prev, s, m.tolerance) {
		m.log.Tracef("moving: dx=%.3f dy=%.3f dz=%.3f", s.X-prev.X, s.Y-prev.Y, s.Z-prev.Z)
		return
	}

	m.log.Info("device still")
	if m.onStill != nil {
		m.onStill()
	}
	m.DisableGate()
}

// GateEnabled reports whether stillness evaluation is active.
func (m *Monitor) GateEnabled() bool {
	return m.gate
}

// LastSample returns the most recent sample, if any.
func (m *Monitor) LastSample() (Sample, bool) {
	return m.last, m.hasLast
}

// Close cancels a pending warm-up and releases the feed.
func (m *Monitor) Close() {
	if m.warmup != nil {
		m.warmup.Stop()
		m.warmup = nil
	}
	m.DisableGate()
}
