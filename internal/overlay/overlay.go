// Package overlay turns detected faces into drawable shapes: a bounding
// rectangle per face and a dot per reported landmark.
package overlay

import (
	"image/color"
	"image/draw"
	"math"

	"github.com/relabs-tech/stillcam/internal/face"
)

// Kind tells how a Shape is drawn.
type Kind string

const (
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
)

const (
	BoundsStroke      = "green"
	BoundsStrokeWidth = 2.0
	DotFill           = "red"
	DotRadius         = 2.0
)

// Shape is one drawable primitive. Rects use X, Y, Width, Height;
// circles use X, Y as center and Radius.
type Shape struct {
	Kind        Kind    `json:"kind"`
	Face        int     `json:"face"`
	Landmark    string  `json:"landmark,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
	Radius      float64 `json:"r,omitempty"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
}

// Render is a pure function of faces. Landmarks a face lacks are skipped.
func Render(faces []face.Face) []Shape {
	var shapes []Shape
	for i, f := range faces {
		shapes = append(shapes, Shape{
			Kind:        KindRect,
			Face:        i,
			X:           f.Bounds.Origin.X,
			Y:           f.Bounds.Origin.Y,
			Width:       f.Bounds.Size.Width,
			Height:      f.Bounds.Size.Height,
			Fill:        "none",
			Stroke:      BoundsStroke,
			StrokeWidth: BoundsStrokeWidth,
		})
		for _, l := range face.AllLandmarks() {
			p, ok := f.Landmark(l)
			if !ok {
				continue
			}
			shapes = append(shapes, Shape{
				Kind:     KindCircle,
				Face:     i,
				Landmark: l.String(),
				X:        p.X,
				Y:        p.Y,
				Radius:   DotRadius,
				Fill:     DotFill,
			})
		}
	}
	return shapes
}

// Draw rasterizes shapes onto dst in color c, scaling preview coordinates
// by scale. Shapes are clipped to dst's bounds; work is bounded by the
// destination size, not by the shape size.
func Draw(dst draw.Image, shapes []Shape, scale float64, c color.Color) {
	b := dst.Bounds()

	for _, s := range shapes {
		switch s.Kind {
		case KindRect:
			x0 := math.Round(s.X * scale)
			y0 := math.Round(s.Y * scale)
			x1 := math.Round((s.X + s.Width) * scale)
			y1 := math.Round((s.Y + s.Height) * scale)
			xs, xe, okX := span(x0, x1, b.Min.X, b.Max.X)
			ys, ye, okY := span(y0, y1, b.Min.Y, b.Max.Y)
			if !okX || !okY {
				continue
			}
			for x := xs; x <= xe; x++ {
				if within(y0, ys, ye) {
					dst.Set(x, int(y0), c)
				}
				if within(y1, ys, ye) {
					dst.Set(x, int(y1), c)
				}
			}
			for y := ys; y <= ye; y++ {
				if within(x0, xs, xe) {
					dst.Set(int(x0), y, c)
				}
				if within(x1, xs, xe) {
					dst.Set(int(x1), y, c)
				}
			}
		case KindCircle:
			cx := s.X * scale
			cy := s.Y * scale
			r := math.Max(s.Radius*scale, 0.5)
			xs, xe, okX := span(math.Floor(cx-r), math.Ceil(cx+r), b.Min.X, b.Max.X)
			ys, ye, okY := span(math.Floor(cy-r), math.Ceil(cy+r), b.Min.Y, b.Max.Y)
			if !okX || !okY {
				continue
			}
			for y := ys; y <= ye; y++ {
				for x := xs; x <= xe; x++ {
					dx, dy := float64(x)-cx, float64(y)-cy
					if dx*dx+dy*dy <= r*r {
						dst.Set(x, y, c)
					}
				}
			}
		}
	}
}

// span clips the pixel range [lo, hi] to [from, to). ok is false when the
// range misses it entirely or is not a number.
func span(lo, hi float64, from, to int) (int, int, bool) {
	if math.IsNaN(lo) || math.IsNaN(hi) || hi < float64(from) || lo > float64(to-1) {
		return 0, 0, false
	}
	return int(math.Max(lo, float64(from))), int(math.Min(hi, float64(to-1))), true
}

func within(v float64, lo, hi int) bool {
	return v >= float64(lo) && v <= float64(hi)
}
