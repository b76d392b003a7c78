package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/face"
	"github.com/relabs-tech/stillcam/internal/overlay"
)

type fakeCapturer struct {
	accept bool
	calls  atomic.Int32
}

func (c *fakeCapturer) RequestCapture() bool {
	c.calls.Add(1)
	return c.accept
}

func inline(fn func()) bool {
	fn()
	return true
}

func readySnapshot() capture.Snapshot {
	return capture.Snapshot{
		SessionID:        "s1",
		State:            capture.StateReady,
		Hint:             capture.HintFace,
		DetectingEnabled: true,
		FaceFound:        true,
		CaptureArmed:     true,
		Faces:            []face.Face{face.SampleFace(100, 100, 200, 240)},
	}
}

func TestWebSessionEndpoints(t *testing.T) {
	ws := newWebServer(&fakeCapturer{}, inline)
	srv := httptest.NewServer(ws.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before any snapshot, got %d", resp.StatusCode)
	}

	ws.publish(readySnapshot())

	resp, err = http.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	var snap capture.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	resp.Body.Close()
	if snap.State != capture.StateReady || len(snap.Faces) != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if _, ok := snap.Faces[0].Landmark(face.LeftEar); ok {
		t.Error("expected left ear to stay absent after the round trip")
	}

	resp, err = http.Get(srv.URL + "/api/overlay")
	if err != nil {
		t.Fatal(err)
	}
	var shapes []overlay.Shape
	if err := json.NewDecoder(resp.Body).Decode(&shapes); err != nil {
		t.Fatalf("decode overlay: %v", err)
	}
	resp.Body.Close()
	// One rectangle plus nine landmark dots.
	if len(shapes) != 10 || shapes[0].Kind != overlay.KindRect {
		t.Errorf("expected 10 shapes starting with a rect, got %d", len(shapes))
	}
}

func TestWebCapture(t *testing.T) {
	tests := []struct {
		name   string
		accept bool
		loopUp bool
		want   int
	}{
		{"accepted", true, true, http.StatusAccepted},
		{"not armed", false, true, http.StatusConflict},
		{"loop stopped", true, false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCapturer{accept: tt.accept}
			call := inline
			if !tt.loopUp {
				call = func(func()) bool { return false }
			}
			srv := httptest.NewServer(newWebServer(c, call).routes())
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/api/capture", "application/json", nil)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	srv := httptest.NewServer(newWebServer(&fakeCapturer{}, inline).routes())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/capture")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /api/capture, got %d", resp.StatusCode)
	}
}

func TestWebSocketStream(t *testing.T) {
	c := &fakeCapturer{accept: true}
	ws := newWebServer(c, inline)
	srv := httptest.NewServer(ws.routes())
	defer srv.Close()

	ws.publish(readySnapshot())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSResponse
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "snapshot" || msg.Snapshot == nil || msg.Snapshot.State != capture.StateReady {
		t.Fatalf("unexpected first message %+v", msg)
	}
	if len(msg.Shapes) != 10 {
		t.Errorf("expected overlay shapes with the snapshot, got %d", len(msg.Shapes))
	}

	if err := conn.WriteJSON(WSMessage{Action: "capture"}); err != nil {
		t.Fatal(err)
	}
	msg = WSResponse{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read capture reply: %v", err)
	}
	if msg.Type != "capture" || msg.Accepted == nil || !*msg.Accepted {
		t.Errorf("expected accepted capture, got %+v", msg)
	}
	if n := c.calls.Load(); n != 1 {
		t.Errorf("expected 1 capture request, got %d", n)
	}

	if err := conn.WriteJSON(WSMessage{Action: "dance"}); err != nil {
		t.Fatal(err)
	}
	msg = WSResponse{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "error" {
		t.Errorf("expected error for unknown action, got %+v", msg)
	}
}
