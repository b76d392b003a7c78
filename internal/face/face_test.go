package face

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"
)

func TestLandmarkNames(t *testing.T) {
	all := AllLandmarks()
	if len(all) != 10 {
		t.Fatalf("expected 10 landmarks, got %d", len(all))
	}
	for _, l := range all {
		got, ok := ParseLandmark(l.String())
		if !ok || got != l {
			t.Errorf("ParseLandmark(%q) = %v, %v", l.String(), got, ok)
		}
	}
	if _, ok := ParseLandmark("chinPosition"); ok {
		t.Error("expected unknown landmark name to be rejected")
	}
	if LeftEar.String() != "leftEarPosition" || NoseBase.String() != "noseBasePosition" {
		t.Errorf("unexpected wire names: %s, %s", LeftEar, NoseBase)
	}
}

func TestDecodeFlatShape(t *testing.T) {
	payload := `[
		{
			"faceID": 7,
			"bounds": {"origin": {"x": 10, "y": 20}, "size": {"width": 100, "height": 120}},
			"rollAngle": 2.5,
			"leftEyePosition": {"x": 40, "y": 60},
			"rightEyePosition": {"x": 80, "y": 60},
			"noseBasePosition": {"x": 60, "y": 90},
			"leftEarPosition": null,
			"someVendorField": {"x": 1, "y": 1}
		},
		{"bounds": {"origin": {"x": 0, "y": 0}, "size": {"width": 5, "height": 5}}}
	]`

	faces, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}

	f := faces[0]
	if f.ID != 7 || f.Bounds.Size.Width != 100 || f.Bounds.Origin.Y != 20 {
		t.Errorf("unexpected fixed fields: %+v", f)
	}
	if f.RollAngle == nil || *f.RollAngle != 2.5 {
		t.Errorf("expected roll angle 2.5, got %v", f.RollAngle)
	}
	if len(f.Landmarks) != 3 {
		t.Errorf("expected 3 landmarks, got %d (%v)", len(f.Landmarks), f.Landmarks)
	}
	if p, ok := f.Landmark(NoseBase); !ok || p.X != 60 || p.Y != 90 {
		t.Errorf("expected nose base (60,90), got %+v ok=%v", p, ok)
	}
	if _, ok := f.Landmark(LeftEar); ok {
		t.Error("expected null left ear to be absent")
	}
	if len(faces[1].Landmarks) != 0 {
		t.Errorf("expected no landmarks on second face, got %v", faces[1].Landmarks)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte(`[{"leftEyePosition": {"x": 1, "y": 2}}]`)); err == nil ||
		!strings.Contains(err.Error(), "missing bounds") {
		t.Errorf("expected missing bounds error, got %v", err)
	}
	if _, err := Decode([]byte(`[{"bounds": {}, "mouthPosition": "left"}]`)); err == nil {
		t.Error("expected error for malformed landmark")
	}
}

func TestFaceJSONRoundTrip(t *testing.T) {
	in := SampleFace(10, 20, 100, 100)
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "leftEarPosition") {
		t.Error("absent landmark must not be serialized")
	}

	var out Face
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out.Landmarks) != len(in.Landmarks) {
		t.Errorf("expected %d landmarks, got %d", len(in.Landmarks), len(out.Landmarks))
	}
	if out.Bounds != in.Bounds {
		t.Errorf("expected bounds %+v, got %+v", in.Bounds, out.Bounds)
	}
}

func TestNormalize(t *testing.T) {
	roll := 3.0
	in := []Face{{
		Bounds: Bounds{Origin: Point{X: 50, Y: 50}, Size: Size{Width: -20, Height: 10}},
		Landmarks: map[Landmark]Point{
			LeftEye:  {X: 1, Y: 2},
			RightEye: {X: math.NaN(), Y: 2},
			Mouth:    {X: 3, Y: math.Inf(1)},
		},
		RollAngle: &roll,
	}}

	out := Normalize(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 face, got %d", len(out))
	}
	b := out[0].Bounds
	if b.Origin.X != 30 || b.Size.Width != 20 {
		t.Errorf("expected folded bounds x=30 w=20, got %+v", b)
	}
	if len(out[0].Landmarks) != 1 {
		t.Errorf("expected only finite landmarks kept, got %v", out[0].Landmarks)
	}

	// The copy must not alias the input.
	out[0].Landmarks[NoseBase] = Point{}
	*out[0].RollAngle = 9
	if _, ok := in[0].Landmarks[NoseBase]; ok {
		t.Error("Normalize aliased the landmark map")
	}
	if roll != 3 {
		t.Error("Normalize aliased the roll angle")
	}

	if Normalize(nil) != nil {
		t.Error("expected nil for empty input")
	}
}

type recordingHandler struct {
	frames chan []Face
}

func (h *recordingHandler) HandleFaces(faces []Face) { h.frames <- faces }
func (h *recordingHandler) HandleError(error)        {}

func TestMockDetectorOnlyEmitsWhenEnabled(t *testing.T) {
	d := NewMockDetector(2*time.Millisecond, SteadyFace(1))
	h := &recordingHandler{frames: make(chan []Face, 32)}
	if err := d.Start(context.Background(), DefaultSettings(), h); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Close()

	select {
	case <-h.frames:
		t.Fatal("expected no frames while disabled")
	case <-time.After(20 * time.Millisecond):
	}

	d.SetEnabled(true)
	first := <-h.frames
	if len(first) != 0 {
		t.Errorf("expected empty first frame, got %d faces", len(first))
	}
	second := <-h.frames
	if len(second) != 1 {
		t.Errorf("expected one face in second frame, got %d", len(second))
	}
}
