package app

import (
	"image"
	"strings"
	"testing"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/stillcam/internal/camera"
	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/face"
)

func lit(img *image1bit.VerticalLSB, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderStatus(t *testing.T) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	renderStatus(img, capture.Snapshot{State: capture.StateSettling, Hint: capture.HintNoFace}, 640)
	// The middle band only holds the overlay.
	middle := image.Rect(0, 16, displayWidth, 48)
	if n := lit(img, middle); n != 0 {
		t.Errorf("expected empty overlay area without faces, got %d pixels", n)
	}
	if lit(img, image.Rect(0, 0, displayWidth, 14)) == 0 {
		t.Error("expected state text on the top line")
	}

	snap := readySnapshot()
	snap.Faces = []face.Face{face.SampleFace(160, 120, 320, 240)}
	renderStatus(img, snap, 640)
	if lit(img, middle) == 0 {
		t.Error("expected face overlay in the middle band")
	}
	// Face spans x 80..240 on a 128 px panel scaled from 640: 32..96.
	if n := lit(img, image.Rect(100, 16, displayWidth, 48)); n != 0 {
		t.Errorf("expected nothing right of the scaled face, got %d pixels", n)
	}
}

func TestFormatSnapshot(t *testing.T) {
	s := readySnapshot()
	s.Captures = 2
	s.LastPhoto = &camera.Photo{URI: "file:///p.jpg"}
	line := formatSnapshot(s)
	for _, want := range []string{"[STATE]", "ready", "faces=1", "captures=2", `"Hi :)"`, "last=file:///p.jpg"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}
