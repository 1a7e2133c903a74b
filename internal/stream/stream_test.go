package stream

import (
	"bytes"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/render"
)

func startSurface(t *testing.T) *Surface {
	t.Helper()
	s := NewSurface(64, 48, 70)
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func dial(t *testing.T, s *Surface) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Server().Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	waitFor(t, func() bool { return s.Server().Clients() == 1 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamFramesAndStatus(t *testing.T) {
	s := startSurface(t)
	conn := dial(t, s)

	s.SetStatus("Loading AR Experience: 50%")
	if err := s.Draw(scene.New(), camera.NewPerspective(64.0/48.0), nil); err != nil {
		t.Fatalf("Draw: %v", err)
	}

	var gotStatus, gotFrame bool
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !gotStatus || !gotFrame {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		switch mt {
		case websocket.TextMessage:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("bad status message %q: %v", data, err)
			}
			if msg.Type != "status" || msg.Status != "Loading AR Experience: 50%" {
				t.Errorf("unexpected message %+v", msg)
			}
			gotStatus = true
		case websocket.BinaryMessage:
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("frame is not a JPEG: %v", err)
			}
			if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
				t.Errorf("unexpected frame size %v", img.Bounds())
			}
			gotFrame = true
		}
	}
	if s.Server().Frames() != 1 {
		t.Errorf("expected 1 broadcast, got %d", s.Server().Frames())
	}
}

func TestStreamResizeFromClient(t *testing.T) {
	s := startSurface(t)
	conn := dial(t, s)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","width":320,"height":240}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","width":0,"height":240}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))

	var events []render.Event
	waitFor(t, func() bool {
		e, _ := s.Poll()
		events = append(events, e...)
		return len(events) > 0
	})
	time.Sleep(50 * time.Millisecond)
	e, _ := s.Poll()
	events = append(events, e...)

	if len(events) != 1 {
		t.Fatalf("expected exactly one valid resize, got %v", events)
	}
	if events[0].Type != render.EventResize || events[0].Width != 320 || events[0].Height != 240 {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestStreamResizeClamped(t *testing.T) {
	s := startSurface(t)
	conn := dial(t, s)

	msg := []byte(`{"type":"resize","width":1073741824,"height":24}`)
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	var events []render.Event
	waitFor(t, func() bool {
		e, _ := s.Poll()
		events = append(events, e...)
		return len(events) > 0
	})
	ev := events[0]
	if ev.Width != MaxViewport || ev.Height != 24 {
		t.Fatalf("expected %dx24, got %dx%d", MaxViewport, ev.Width, ev.Height)
	}

	// The render loop applies the event like this.
	s.Resize(ev.Width, ev.Height)
	if w, h := s.Size(); w > MaxViewport || h > MaxViewport {
		t.Errorf("surface grew to %dx%d", w, h)
	}
}

func TestStreamStatusEndpoint(t *testing.T) {
	s := startSurface(t)
	s.SetStatus("Error: measurements unavailable")

	resp, err := http.Get("http://" + s.Server().Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var st StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if st.Status != "Error: measurements unavailable" || st.Clients != 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestStreamRequiresUpgrade(t *testing.T) {
	s := startSurface(t)
	resp, err := http.Get("http://" + s.Server().Addr() + "/ws")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}

func TestStreamLateClientGetsStatus(t *testing.T) {
	s := startSurface(t)
	s.SetStatus("Loading AR Experience: 10%")
	conn := dial(t, s)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage || !strings.Contains(string(data), "10%") {
		t.Errorf("expected current status on connect, got %q", data)
	}
}

func TestSurfaceCloseTwice(t *testing.T) {
	s := NewSurface(8, 8, 0)
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Close()
	s.Close()
	if err := s.Draw(scene.New(), camera.NewPerspective(1), nil); err == nil {
		t.Error("expected draw on closed surface to fail")
	}
}
