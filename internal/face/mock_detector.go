// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package face

import (
	"context"
	"math"
	"sync"
	"time"
)

// Script returns the faces seen in the n-th frame since detection was
// last enabled.
type Script func(n int) []Face

type mockDetector struct {
	interval time.Duration
	script   Script

	mu      sync.Mutex
	enabled bool
	frame   int
	cancel  context.CancelFunc
}

// NewMockDetector creates a detector that produces frames from script at
// the given interval. A nil script uses SteadyFace(3).
func NewMockDetector(interval time.Duration, script Script) Detector {
	if script == nil {
		script = SteadyFace(3)
	}
	return &mockDetector{interval: interval, script: script}
}

func (m *mockDetector) Start(ctx context.Context, _ Settings, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				if !m.enabled {
					m.mu.Unlock()
					continue
				}
				n := m.frame
				m.frame++
				m.mu.Unlock()
				h.HandleFaces(m.script(n))
			}
		}
	}()
	return nil
}

func (m *mockDetector) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled && !m.enabled {
		m.frame = 0
	}
	m.enabled = enabled
}

func (m *mockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// SteadyFace reports no face for the first `after` frames, then a single
// slowly drifting face with every landmark except the left ear.
func SteadyFace(after int) Script {
	return func(n int) []Face {
		if n < after {
			return nil
		}
		drift := 4 * math.Sin(float64(n)/5)
		return []Face{SampleFace(120+drift, 160, 160, 200)}
	}
}

// SampleFace builds a face at (x, y) of size w×h with landmarks placed at
// typical proportions. The left ear is omitted, as detectors often do for
// a slightly turned head.
func SampleFace(x, y, w, h float64) Face {
	at := func(fx, fy float64) Point { return Point{X: x + fx*w, Y: y + fy*h} }
	return Face{
		ID:     1,
		Bounds: Bounds{Origin: Point{X: x, Y: y}, Size: Size{Width: w, Height: h}},
		Landmarks: map[Landmark]Point{
			RightEar:   at(1.0, 0.45),
			LeftEye:    at(0.3, 0.38),
			RightEye:   at(0.7, 0.38),
			LeftCheek:  at(0.25, 0.6),
			RightCheek: at(0.75, 0.6),
			NoseBase:   at(0.5, 0.62),
			LeftMouth:  at(0.35, 0.78),
			Mouth:      at(0.5, 0.8),
			RightMouth: at(0.65, 0.78),
		},
	}
}
