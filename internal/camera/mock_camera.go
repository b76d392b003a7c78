package camera

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCamera grants (or denies) access and "takes" a photo after a fixed
// delay.
type MockCamera struct {
	Granted bool
	Delay   time.Duration
	Fail    error

	mu       sync.Mutex
	requests []Request
}

// NewMockCamera returns a camera granting access with the given capture delay.
func NewMockCamera(delay time.Duration) *MockCamera {
	return &MockCamera{Granted: true, Delay: delay}
}

func (c *MockCamera) RequestPermission(ctx context.Context) (bool, error) {
	return c.Granted, ctx.Err()
}

func (c *MockCamera) CapturePhoto(ctx context.Context, req Request) (Photo, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	select {
	case <-time.After(c.Delay):
	case <-ctx.Done():
		return Photo{}, ctx.Err()
	}
	if c.Fail != nil {
		return Photo{}, c.Fail
	}
	return Photo{
		ID:       req.ID,
		URI:      fmt.Sprintf("mock://photos/%s.jpg", req.ID),
		TakenAt:  time.Now(),
		Width:    1280,
		Height:   720,
		Location: req.Location,
	}, nil
}

// Requests returns the capture requests received so far.
func (c *MockCamera) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.requests...)
}
