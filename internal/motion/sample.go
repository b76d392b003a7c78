package motion

import (
	"math"
	"time"
)

// Sample is one acceleration reading (gravity included), in m/s².
type Sample struct {
	Source string    `json:"source,omitempty"` // "imu", "mock", ...
	Time   time.Time `json:"time"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Still reports whether every axis moved strictly less than tolerance
// between prev and next.
func Still(prev, next Sample, tolerance float64) bool {
	return math.Abs(next.X-prev.X) < tolerance &&
		math.Abs(next.Y-prev.Y) < tolerance &&
		math.Abs(next.Z-prev.Z) < tolerance
}

// Reader is anything that can produce acceleration samples on demand.
type Reader interface {
	ReadSample() (Sample, error)
}

// Subscription is a live feed registration. Release stops delivery and
// frees the underlying listener; it is safe to call more than once.
type Subscription interface {
	Release()
}

// Feed delivers samples at roughly the configured interval to every
// subscriber.
type Feed interface {
	Subscribe(fn func(Sample)) (Subscription, error)
	SetInterval(d time.Duration)
}
