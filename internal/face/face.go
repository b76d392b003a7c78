// Package face defines detected-face geometry, detector settings and the
// contract face detector providers implement.
package face

import (
	"context"
	"math"
)

// Point is a position in preview coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in preview coordinates.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds is the face bounding rectangle.
type Bounds struct {
	Origin Point `json:"origin"`
	Size   Size  `json:"size"`
}

// Landmark enumerates the facial points a detector may report.
type Landmark int

const (
	LeftEar Landmark = iota
	RightEar
	LeftEye
	RightEye
	LeftCheek
	RightCheek
	Mouth
	LeftMouth
	RightMouth
	NoseBase
	numLandmarks
)

var landmarkNames = [numLandmarks]string{
	LeftEar:    "leftEarPosition",
	RightEar:   "rightEarPosition",
	LeftEye:    "leftEyePosition",
	RightEye:   "rightEyePosition",
	LeftCheek:  "leftCheekPosition",
	RightCheek: "rightCheekPosition",
	Mouth:      "mouthPosition",
	LeftMouth:  "leftMouthPosition",
	RightMouth: "rightMouthPosition",
	NoseBase:   "noseBasePosition",
}

// AllLandmarks lists every landmark in drawing order.
func AllLandmarks() []Landmark {
	out := make([]Landmark, numLandmarks)
	for i := range out {
		out[i] = Landmark(i)
	}
	return out
}

// String returns the wire name, e.g. "leftEarPosition".
func (l Landmark) String() string {
	if l < 0 || l >= numLandmarks {
		return "unknown"
	}
	return landmarkNames[l]
}

// ParseLandmark maps a wire name back to its Landmark.
func ParseLandmark(name string) (Landmark, bool) {
	for i, n := range landmarkNames {
		if n == name {
			return Landmark(i), true
		}
	}
	return 0, false
}

// Face is one detection result. Landmarks only holds points the detector
// actually reported.
type Face struct {
	ID        int
	Bounds    Bounds
	Landmarks map[Landmark]Point

	RollAngle *float64
	YawAngle  *float64

	// Set when classifications are enabled.
	SmilingProbability      *float64
	LeftEyeOpenProbability  *float64
	RightEyeOpenProbability *float64
}

// Landmark returns the point for l and whether the detector reported it.
func (f Face) Landmark(l Landmark) (Point, bool) {
	p, ok := f.Landmarks[l]
	return p, ok
}

// Normalize returns an independent copy of faces with non-finite landmark
// points dropped and negative sizes folded into the origin.
func Normalize(faces []Face) []Face {
	if len(faces) == 0 {
		return nil
	}
	out := make([]Face, 0, len(faces))
	for _, f := range faces {
		n := f
		n.Bounds = normalizeBounds(f.Bounds)
		n.Landmarks = make(map[Landmark]Point, len(f.Landmarks))
		for l, p := range f.Landmarks {
			if l < 0 || l >= numLandmarks || !finite(p.X) || !finite(p.Y) {
				continue
			}
			n.Landmarks[l] = p
		}
		n.RollAngle = copyFloat(f.RollAngle)
		n.YawAngle = copyFloat(f.YawAngle)
		n.SmilingProbability = copyFloat(f.SmilingProbability)
		n.LeftEyeOpenProbability = copyFloat(f.LeftEyeOpenProbability)
		n.RightEyeOpenProbability = copyFloat(f.RightEyeOpenProbability)
		out = append(out, n)
	}
	return out
}

func normalizeBounds(b Bounds) Bounds {
	if b.Size.Width < 0 {
		b.Origin.X += b.Size.Width
		b.Size.Width = -b.Size.Width
	}
	if b.Size.Height < 0 {
		b.Origin.Y += b.Size.Height
		b.Size.Height = -b.Size.Height
	}
	return b
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Mode trades detection speed for accuracy.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeAccurate Mode = "accurate"
)

// Settings configures a detector.
type Settings struct {
	Mode               Mode `json:"mode"`
	DetectLandmarks    bool `json:"detect_landmarks"`
	RunClassifications bool `json:"run_classifications"`
}

// DefaultSettings asks for accurate detection with every landmark and no
// classification.
func DefaultSettings() Settings {
	return Settings{Mode: ModeAccurate, DetectLandmarks: true}
}

// Handler receives detector output. Calls may come from any goroutine.
type Handler interface {
	HandleFaces(faces []Face)
	HandleError(err error)
}

// Detector produces face lists for every processed frame while enabled.
type Detector interface {
	Start(ctx context.Context, settings Settings, h Handler) error
	SetEnabled(enabled bool)
	Close() error
}
