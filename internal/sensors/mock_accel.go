package sensors

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/stillcam/internal/motion"
)

type mockAccel struct {
	shake time.Duration
	now   func() time.Time

	mu    sync.Mutex
	start time.Time
	rng   *rand.Rand
}

// NewMockAccel creates a reader that reports a hand-held device swinging
// around for shake, then resting flat with a little sensor noise.
func NewMockAccel(shake time.Duration) motion.Reader {
	return &mockAccel{
		shake: shake,
		now:   time.Now,
		start: time.Now(),
		rng:   rand.New(rand.NewSource(1)),
	}
}

func (m *mockAccel) ReadSample() (motion.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	elapsed := now.Sub(m.start).Seconds()
	noise := func() float64 { return (m.rng.Float64() - 0.5) * 0.05 }

	s := motion.Sample{Source: "mock", Time: now, Z: StandardGravity}
	if now.Sub(m.start) < m.shake {
		s.X = 3 * math.Sin(elapsed*7)
		s.Y = 2.5 * math.Cos(elapsed*5.3)
		s.Z += 2 * math.Sin(elapsed*3.1)
	}
	s.X += noise()
	s.Y += noise()
	s.Z += noise()
	return s, nil
}
