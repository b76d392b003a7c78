package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// savedNotice is published by the camera service once a requested photo
// is stored (or could not be taken).
type savedNotice struct {
	ID      string    `json:"id"`
	URI     string    `json:"uri"`
	TakenAt time.Time `json:"taken_at"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Error   string    `json:"error,omitempty"`
}

type captureResult struct {
	photo Photo
	err   error
}

// MQTTCamera talks to a camera service over MQTT: capture requests go out
// on one topic and saved notices come back on another, matched by ID.
type MQTTCamera struct {
	client       mqtt.Client
	requestTopic string
	savedTopic   string
	log          *logrus.Entry

	mu      sync.Mutex
	pending map[string]chan captureResult
	closed  bool
}

// NewMQTTCamera creates a camera over an already connected client.
func NewMQTTCamera(client mqtt.Client, requestTopic, savedTopic string) *MQTTCamera {
	return &MQTTCamera{
		client:       client,
		requestTopic: requestTopic,
		savedTopic:   savedTopic,
		log:          logging.For("camera"),
		pending:      make(map[string]chan captureResult),
	}
}

// RequestPermission subscribes to saved notices. Access is granted when
// the broker accepts the subscription; a refused subscription is returned
// as an error so the cause stays visible.
func (c *MQTTCamera) RequestPermission(ctx context.Context) (bool, error) {
	token := c.client.Subscribe(c.savedTopic, 1, c.handleSaved)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return false, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return false, fmt.Errorf("camera: subscribe %s: %w", c.savedTopic, err)
	}
	c.log.Infof("subscribed to %s", c.savedTopic)
	return true, nil
}

// CapturePhoto publishes req and waits for the matching saved notice.
func (c *MQTTCamera) CapturePhoto(ctx context.Context, req Request) (Photo, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Photo{}, fmt.Errorf("camera: marshal request: %w", err)
	}

	ch := make(chan captureResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Photo{}, ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer c.forget(req.ID)

	token := c.client.Publish(c.requestTopic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return Photo{}, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return Photo{}, fmt.Errorf("camera: publish %s: %w", c.requestTopic, err)
	}
	c.log.Infof("capture %s requested", req.ID)

	select {
	case res := <-ch:
		if res.err == nil {
			res.photo.Location = req.Location
		}
		return res.photo, res.err
	case <-ctx.Done():
		return Photo{}, ctx.Err()
	}
}

func (c *MQTTCamera) handleSaved(_ mqtt.Client, msg mqtt.Message) {
	var n savedNotice
	if err := json.Unmarshal(msg.Payload(), &n); err != nil {
		c.log.Warnf("saved notice unmarshal error: %v", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[n.ID]
	delete(c.pending, n.ID)
	c.mu.Unlock()
	if !ok {
		c.log.Debugf("ignoring saved notice for unknown capture %s", n.ID)
		return
	}

	if n.Error != "" {
		ch <- captureResult{err: errors.New("camera: service: " + n.Error)}
		return
	}
	ch <- captureResult{photo: Photo{
		ID:      n.ID,
		URI:     n.URI,
		TakenAt: n.TakenAt,
		Width:   n.Width,
		Height:  n.Height,
	}}
}

func (c *MQTTCamera) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close fails pending captures and drops the saved-notice subscription.
func (c *MQTTCamera) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, ch := range c.pending {
		ch <- captureResult{err: ErrClosed}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	token := c.client.Unsubscribe(c.savedTopic)
	token.WaitTimeout(250 * time.Millisecond)
}
