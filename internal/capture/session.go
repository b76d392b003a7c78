// Package capture implements the capture session: wait for the device to
// hold still, look for faces, and take a photo when asked while a face is
// in view.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/camera"
	"github.com/relabs-tech/stillcam/internal/face"
	"github.com/relabs-tech/stillcam/internal/gps"
	"github.com/relabs-tech/stillcam/internal/logging"
	"github.com/relabs-tech/stillcam/internal/motion"
)

// State is the user-facing session state, derived from the session flags.
type State string

const (
	StatePending   State = "pending"
	StateNoAccess  State = "no_access"
	StateIdle      State = "idle"
	StateSettling  State = "settling"
	StateDetecting State = "detecting"
	StateReady     State = "ready"
	StateCapturing State = "capturing"
)

// Hint texts shown next to the preview.
const (
	HintFace     = "Hi :)"
	HintNoFace   = "No Face Detected"
	HintNoAccess = "No access to camera"
)

var (
	errDetectionActive = errors.New("face detection active")
	errClosed          = errors.New("session closed")
)

// Locator supplies the position attached to capture requests.
type Locator interface {
	Latest() (gps.Fix, bool)
}

// Options configures a session.
type Options struct {
	SampleInterval time.Duration
	Tolerance      float64
	Warmup         time.Duration
	Detector       face.Settings

	// Optional.
	Locator Locator
}

// DefaultOptions mirrors the stock device behaviour: 500 ms sampling,
// tolerance 1, two seconds of warm-up and accurate detection with all
// landmarks.
func DefaultOptions() Options {
	return Options{
		SampleInterval: 500 * time.Millisecond,
		Tolerance:      1,
		Warmup:         motion.DefaultWarmup,
		Detector:       face.DefaultSettings(),
	}
}

// Session owns the motion monitor and drives the detector and the camera.
// Its methods must run on the loop goroutine, or before the loop starts.
type Session struct {
	id       string
	loop     motion.Dispatcher
	monitor  *motion.Monitor
	detector face.Detector
	camera   camera.Camera
	opts     Options
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	permissionKnown bool
	accessGranted   bool

	detectingEnabled bool
	faceFound        bool
	captureArmed     bool
	captureInFlight  bool
	faces            []face.Face

	captures     int
	lastPhoto    *camera.Photo
	lastCaptErr  string
	updatedAt    time.Time
	closed       bool
	listeners    map[int]func(Snapshot)
	nextListener int
}

// New creates a session reading motion from feed. Callbacks from the feed,
// the detector and the camera are posted onto loop.
func New(feed motion.Feed, loop motion.Dispatcher, det face.Detector, cam camera.Camera, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		loop:      loop,
		detector:  det,
		camera:    cam,
		opts:      opts,
		log:       logging.For("capture"),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]func(Snapshot)),
	}
	s.monitor = motion.NewMonitor(feed, loop, s.OnStillDetected)
	s.monitor.SetArmCheck(func() error {
		if s.closed {
			return errClosed
		}
		if s.detectingEnabled {
			return errDetectionActive
		}
		return nil
	})
	return s
}

// ID identifies the session in published snapshots.
func (s *Session) ID() string {
	return s.id
}

// Start asks for camera access once. When granted it starts the detector
// disabled and arms the motion gate after the warm-up delay. Denial is
// terminal.
func (s *Session) Start(ctx context.Context) error {
	if s.closed {
		return errClosed
	}
	if s.permissionKnown {
		return nil
	}

	granted, err := s.camera.RequestPermission(ctx)
	s.permissionKnown = true
	s.accessGranted = granted && err == nil
	if err != nil {
		s.notify()
		return fmt.Errorf("capture: request camera permission: %w", err)
	}
	if !granted {
		s.log.Warn("camera access denied")
		s.notify()
		return nil
	}

	if err := s.monitor.Configure(s.opts.SampleInterval, s.opts.Tolerance); err != nil {
		return fmt.Errorf("capture: configure monitor: %w", err)
	}
	if err := s.detector.Start(s.ctx, s.opts.Detector, handler{s}); err != nil {
		return fmt.Errorf("capture: start detector: %w", err)
	}
	s.detector.SetEnabled(false)

	s.log.Infof("session %s started, warm-up %v", s.id, s.opts.Warmup)
	s.monitor.Start(s.opts.Warmup)
	s.notify()
	return nil
}

// OnStillDetected switches from motion gating to face detection.
func (s *Session) OnStillDetected() {
	if s.closed || !s.accessGranted {
		return
	}
	s.faceFound = false
	s.enableDetection()
	s.log.Info("device still, detecting faces")
	s.notify()
}

// OnFacesDetected replaces the current face list. Results arriving while
// detection is off are dropped.
func (s *Session) OnFacesDetected(faces []face.Face) {
	if !s.detectingEnabled {
		return
	}

	wasFound, wasArmed := s.faceFound, s.captureArmed
	if len(faces) == 0 {
		s.faceFound = false
		s.captureArmed = false
		s.faces = nil
	} else {
		s.faceFound = true
		s.captureArmed = !s.captureInFlight
		s.faces = face.Normalize(faces)
	}

	if wasFound != s.faceFound || wasArmed != s.captureArmed {
		s.log.Debugf("faces=%d found=%v armed=%v", len(faces), s.faceFound, s.captureArmed)
	}
	s.notify()
}

// OnDetectionError logs a detector failure. Session state is unchanged.
func (s *Session) OnDetectionError(err error) {
	s.log.Warnf("face detection error: %v", err)
}

// RequestCapture starts a capture when a face is in view and no capture
// is running. It returns false, touching nothing, otherwise.
func (s *Session) RequestCapture() bool {
	if s.closed || !s.captureArmed || s.captureInFlight {
		return false
	}

	var loc *gps.Fix
	if s.opts.Locator != nil {
		if fix, ok := s.opts.Locator.Latest(); ok {
			loc = &fix
		}
	}
	req, err := camera.NewRequest(time.Now(), loc)
	if err != nil {
		s.log.Errorf("new capture request: %v", err)
		return false
	}

	s.captureInFlight = true
	s.captureArmed = false
	s.log.Infof("capture %s started", req.ID)

	ctx := s.ctx
	go func() {
		photo, err := s.camera.CapturePhoto(ctx, req)
		s.loop.Post(func() { s.onCaptureComplete(req, photo, err) })
	}()

	s.notify()
	return true
}

func (s *Session) onCaptureComplete(req camera.Request, photo camera.Photo, err error) {
	s.captureInFlight = false
	s.captures++
	if err != nil {
		s.lastCaptErr = err.Error()
		s.log.Warnf("capture %s failed: %v", req.ID, err)
	} else {
		s.lastCaptErr = ""
		s.lastPhoto = &photo
		s.log.Infof("capture %s saved to %s", req.ID, photo.URI)
	}

	if s.closed {
		return
	}
	s.faceFound = false
	s.faces = nil
	s.enableDetection()
	s.notify()
}

func (s *Session) enableDetection() {
	if s.monitor.GateEnabled() {
		s.monitor.DisableGate()
	}
	s.detectingEnabled = true
	s.detector.SetEnabled(true)
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the loop and must not block. The returned func unregisters it.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

func (s *Session) notify() {
	s.updatedAt = time.Now()
	if len(s.listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.listeners {
		fn(snap)
	}
}

// Close stops motion gating and detection and cancels a running capture.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.monitor.Close()
	if s.detectingEnabled {
		s.detector.SetEnabled(false)
		s.detectingEnabled = false
	}
	if err := s.detector.Close(); err != nil {
		s.log.Warnf("close detector: %v", err)
	}
	s.cancel()
	s.captureArmed = false
	s.log.Infof("session %s closed", s.id)
	s.notify()
}

// State derives the current state from the session flags.
func (s *Session) State() State {
	switch {
	case !s.permissionKnown:
		return StatePending
	case !s.accessGranted:
		return StateNoAccess
	case s.captureInFlight:
		return StateCapturing
	case s.captureArmed:
		return StateReady
	case s.detectingEnabled:
		return StateDetecting
	case s.monitor.GateEnabled():
		return StateSettling
	default:
		return StateIdle
	}
}

// Flag accessors.

func (s *Session) DetectingEnabled() bool { return s.detectingEnabled }
func (s *Session) FaceFound() bool        { return s.faceFound }
func (s *Session) CaptureArmed() bool     { return s.captureArmed }
func (s *Session) CaptureInFlight() bool  { return s.captureInFlight }

// Faces returns the latest normalized face list.
func (s *Session) Faces() []face.Face {
	return s.faces
}

// Monitor exposes the motion monitor, mainly for status reporting.
func (s *Session) Monitor() *motion.Monitor {
	return s.monitor
}

type handler struct{ s *Session }

func (h handler) HandleFaces(faces []face.Face) {
	h.s.loop.Post(func() { h.s.OnFacesDetected(faces) })
}

func (h handler) HandleError(err error) {
	h.s.loop.Post(func() { h.s.OnDetectionError(err) })
}
