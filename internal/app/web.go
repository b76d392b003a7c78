package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/logging"
	"github.com/relabs-tech/stillcam/internal/overlay"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	wsSendBuffer   = 16
	wsWriteTimeout = 5 * time.Second
)

// Capturer is the part of the session the web API drives.
type Capturer interface {
	RequestCapture() bool
}

// WSMessage is sent by browser clients.
type WSMessage struct {
	Action string `json:"action"` // capture
}

// WSResponse is pushed to browser clients.
type WSResponse struct {
	Type     string            `json:"type"` // snapshot, capture, error
	Snapshot *capture.Snapshot `json:"snapshot,omitempty"`
	Shapes   []overlay.Shape   `json:"shapes,omitempty"`
	Accepted *bool             `json:"accepted,omitempty"`
	Message  string            `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan WSResponse
}

// webServer serves the session API and streams snapshots over websockets.
// publish runs on the event loop; capture requests are marshalled onto it
// through call.
type webServer struct {
	capturer Capturer
	call     func(func()) bool
	log      *logrus.Entry

	mu      sync.RWMutex
	latest  capture.Snapshot
	have    bool
	clients map[*wsClient]struct{}
}

func newWebServer(c Capturer, call func(func()) bool) *webServer {
	return &webServer{
		capturer: c,
		call:     call,
		log:      logging.For("web"),
		clients:  make(map[*wsClient]struct{}),
	}
}

func (s *webServer) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/api/overlay", s.handleOverlay).Methods(http.MethodGet)
	r.HandleFunc("/api/capture", s.handleCapture).Methods(http.MethodPost)
	r.HandleFunc("/ws/session", s.handleWS)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("web")))
	return r
}

// publish records snap and fans it out. Slow clients miss updates.
func (s *webServer) publish(snap capture.Snapshot) {
	s.mu.Lock()
	s.latest = snap
	s.have = true
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	msg := snapshotMessage(snap)
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			s.log.Debug("websocket client lagging, dropping snapshot")
		}
	}
}

func snapshotMessage(snap capture.Snapshot) WSResponse {
	return WSResponse{Type: "snapshot", Snapshot: &snap, Shapes: overlay.Render(snap.Faces)}
}

func (s *webServer) snapshot() (capture.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.have
}

// requestCapture runs RequestCapture on the loop. ok is false when the
// loop is gone.
func (s *webServer) requestCapture() (accepted, ok bool) {
	ok = s.call(func() { accepted = s.capturer.RequestCapture() })
	return accepted, ok
}

func (s *webServer) handleSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *webServer) handleOverlay(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	shapes := overlay.Render(snap.Faces)
	if shapes == nil {
		shapes = []overlay.Shape{}
	}
	writeJSON(w, http.StatusOK, shapes)
}

func (s *webServer) handleCapture(w http.ResponseWriter, r *http.Request) {
	accepted, ok := s.requestCapture()
	switch {
	case !ok:
		http.Error(w, "session stopped", http.StatusServiceUnavailable)
	case !accepted:
		writeJSON(w, http.StatusConflict, map[string]interface{}{"accepted": false})
	default:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
	}
}

func (s *webServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan WSResponse, wsSendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.have {
		c.send <- snapshotMessage(s.latest)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go s.writeLoop(c, done)
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(done)
		conn.Close()
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.log.Debugf("websocket read error: %v", err)
			return
		}

		switch msg.Action {
		case "capture":
			accepted, ok := s.requestCapture()
			if !ok {
				c.trySend(WSResponse{Type: "error", Message: "session stopped"})
				return
			}
			c.trySend(WSResponse{Type: "capture", Accepted: &accepted})
		default:
			c.trySend(WSResponse{Type: "error", Message: "unknown action " + msg.Action})
		}
	}
}

func (s *webServer) writeLoop(c *wsClient, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.log.Debugf("websocket write error: %v", err)
				c.conn.Close()
				return
			}
		}
	}
}

func (c *wsClient) trySend(msg WSResponse) {
	select {
	case c.send <- msg:
	default:
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.For("web").Warnf("json encode error: %v", err)
	}
}
