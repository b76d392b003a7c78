package capture

import (
	"time"

	"github.com/relabs-tech/stillcam/internal/camera"
	"github.com/relabs-tech/stillcam/internal/face"
	"github.com/relabs-tech/stillcam/internal/motion"
)

// Snapshot is a self-contained copy of the session state, safe to hand to
// other goroutines and to publish as JSON.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	State     State     `json:"state"`
	Hint      string    `json:"hint,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	GateEnabled      bool `json:"gate_enabled"`
	DetectingEnabled bool `json:"detecting_enabled"`
	FaceFound        bool `json:"face_found"`
	CaptureArmed     bool `json:"capture_armed"`
	CaptureInFlight  bool `json:"capture_in_flight"`

	Faces      []face.Face    `json:"faces"`
	LastSample *motion.Sample `json:"last_sample,omitempty"`

	Captures         int           `json:"captures"`
	LastPhoto        *camera.Photo `json:"last_photo,omitempty"`
	LastCaptureError string        `json:"last_capture_error,omitempty"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:        s.id,
		State:            s.State(),
		Hint:             s.hint(),
		UpdatedAt:        s.updatedAt,
		GateEnabled:      s.monitor.GateEnabled(),
		DetectingEnabled: s.detectingEnabled,
		FaceFound:        s.faceFound,
		CaptureArmed:     s.captureArmed,
		CaptureInFlight:  s.captureInFlight,
		Faces:            face.Normalize(s.faces),
		Captures:         s.captures,
		LastCaptureError: s.lastCaptErr,
	}
	if snap.Faces == nil {
		snap.Faces = []face.Face{}
	}
	if sample, ok := s.monitor.LastSample(); ok {
		snap.LastSample = &sample
	}
	if s.lastPhoto != nil {
		p := *s.lastPhoto
		snap.LastPhoto = &p
	}
	return snap
}

func (s *Session) hint() string {
	switch {
	case !s.permissionKnown:
		return ""
	case !s.accessGranted:
		return HintNoAccess
	case s.faceFound:
		return HintFace
	default:
		return HintNoFace
	}
}
