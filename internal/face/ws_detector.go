package face

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/logging"
)

// wsCommand is sent to the vision service.
type wsCommand struct {
	Action   string    `json:"action"` // configure, start, stop
	Settings *Settings `json:"settings,omitempty"`
}

// wsEvent is received from the vision service.
type wsEvent struct {
	Type    string              `json:"type"` // faces, error
	Faces   jsoniter.RawMessage `json:"faces,omitempty"`
	Message string              `json:"message,omitempty"`
}

// WSDetector streams face lists from a remote vision service over a
// websocket. Frames arriving while disabled are dropped client side too.
type WSDetector struct {
	url          string
	log          *logrus.Entry
	pingInterval time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex
	conn    *websocket.Conn
	enabled atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewWSDetector creates a detector for the service at url (ws:// or wss://).
func NewWSDetector(url string) *WSDetector {
	return &WSDetector{
		url:          url,
		log:          logging.For("detector"),
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
}

// Start dials the service, sends settings and begins reading events.
// Detection starts disabled.
func (d *WSDetector) Start(ctx context.Context, settings Settings, h Handler) error {
	if d.url == "" {
		return fmt.Errorf("detector: service URL not configured")
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	d.log.Infof("connecting to %s", d.url)
	conn, _, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return fmt.Errorf("detector: connect %s: %w", d.url, err)
	}
	d.conn = conn

	if err := d.send(wsCommand{Action: "configure", Settings: &settings}); err != nil {
		conn.Close()
		return fmt.Errorf("detector: configure: %w", err)
	}
	d.log.Infof("configured (mode=%s landmarks=%v classifications=%v)",
		settings.Mode, settings.DetectLandmarks, settings.RunClassifications)

	go d.readLoop(h)
	go d.keepAlive()
	return nil
}

// SetEnabled starts or stops frame processing on the service.
func (d *WSDetector) SetEnabled(enabled bool) {
	if d.enabled.Swap(enabled) == enabled || d.conn == nil {
		return
	}
	action := "stop"
	if enabled {
		action = "start"
	}
	if err := d.send(wsCommand{Action: action}); err != nil {
		d.log.Warnf("send %s: %v", action, err)
	}
}

func (d *WSDetector) send(cmd wsCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	return d.conn.WriteMessage(websocket.TextMessage, payload)
}

func (d *WSDetector) readLoop(h Handler) {
	for {
		_, data, err := d.conn.ReadMessage()
		if err != nil {
			if d.closed.Load() {
				return
			}
			d.log.Errorf("connection lost, detection stopped: %v", err)
			h.HandleError(fmt.Errorf("detector: read: %w", err))
			d.Close()
			return
		}

		var ev wsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			h.HandleError(fmt.Errorf("detector: decode event: %w", err))
			continue
		}

		switch ev.Type {
		case "faces":
			if !d.enabled.Load() {
				continue
			}
			var faces []Face
			if len(ev.Faces) > 0 {
				if faces, err = Decode(ev.Faces); err != nil {
					h.HandleError(fmt.Errorf("detector: decode faces: %w", err))
					continue
				}
			}
			h.HandleFaces(faces)
		case "error":
			h.HandleError(errors.New("detector: service: " + ev.Message))
		default:
			d.log.Debugf("ignoring event type %q", ev.Type)
		}
	}
}

func (d *WSDetector) keepAlive() {
	ticker := time.NewTicker(d.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.writeMu.Lock()
			err := d.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(d.writeTimeout))
			d.writeMu.Unlock()
			if err != nil {
				d.log.Warnf("ping failed, closing connection: %v", err)
				d.Close()
				return
			}
		}
	}
}

// Close stops detection and closes the connection.
func (d *WSDetector) Close() error {
	var err error
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.done)
		if d.conn == nil {
			return
		}
		d.writeMu.Lock()
		_ = d.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(d.writeTimeout))
		d.writeMu.Unlock()
		err = d.conn.Close()
		d.log.Info("connection closed")
	})
	return err
}
