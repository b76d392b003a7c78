// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/stillcam/internal/camera"
	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/eventloop"
	"github.com/relabs-tech/stillcam/internal/face"
	"github.com/relabs-tech/stillcam/internal/motion"
	"github.com/relabs-tech/stillcam/internal/sensors"
)

// RunMockConsole runs a whole session against mock hardware and prints
// every state change. A capture is requested as soon as one is armed.
func RunMockConsole() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := capture.DefaultOptions()
	feed := motion.NewTickerFeed(sensors.NewMockAccel(3*time.Second), opts.SampleInterval)
	detector := face.NewMockDetector(150*time.Millisecond, face.SteadyFace(4))
	cam := camera.NewMockCamera(400 * time.Millisecond)

	queue := eventloop.New(queueSize)
	session := capture.New(feed, queue, detector, cam, opts)
	defer session.Close()

	var last capture.State
	session.Subscribe(func(s capture.Snapshot) {
		if s.CaptureArmed {
			// Outside the current notification, like a user tapping.
			queue.Post(func() { session.RequestCapture() })
		}
		if s.State == last {
			return
		}
		last = s.State
		fmt.Println(formatSnapshot(s))
	})

	if err := session.Start(ctx); err != nil {
		return err
	}
	if err := queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
