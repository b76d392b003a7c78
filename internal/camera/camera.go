// Package camera defines the capture collaborator the session drives and
// its implementations.
package camera

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/relabs-tech/stillcam/internal/gps"
)

// ErrClosed is returned for captures pending when a camera is closed.
var ErrClosed = errors.New("camera: closed")

// Request asks for one photo.
type Request struct {
	ID          string    `json:"id"`
	RequestedAt time.Time `json:"requested_at"`
	Location    *gps.Fix  `json:"location,omitempty"`
}

// Photo describes a saved capture. Persisting the file is the camera's
// business; the session only keeps this record.
type Photo struct {
	ID       string    `json:"id"`
	URI      string    `json:"uri"`
	TakenAt  time.Time `json:"taken_at"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Location *gps.Fix  `json:"location,omitempty"`
}

// Camera grants access once at startup and captures photos on request.
// CapturePhoto blocks until the capture completes.
type Camera interface {
	RequestPermission(ctx context.Context) (bool, error)
	CapturePhoto(ctx context.Context, req Request) (Photo, error)
}

// NewRequest creates a request with a time-ordered ID.
func NewRequest(now time.Time, loc *gps.Fix) (Request, error) {
	id, err := ulid.New(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return Request{}, err
	}
	return Request{ID: id.String(), RequestedAt: now, Location: loc}, nil
}
