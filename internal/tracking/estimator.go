package tracking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/Faultbox/fitme-ar/internal/capture"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Estimator turns a video frame into pose landmarks. Estimate returns a nil
// frame when no body is found.
type Estimator interface {
	Configure(ctx context.Context, opts Options) error
	Estimate(ctx context.Context, frame capture.Frame) (*LandmarkFrame, error)
	Close() error
}

// ErrClosed is returned by a closed estimator.
var ErrClosed = errors.New("estimator closed")

// configMessage is sent once after connecting.
type configMessage struct {
	Type    string  `json:"type"`
	Options Options `json:"options"`
}

// resultMessage is the service's answer to one frame.
type resultMessage struct {
	Type          string     `json:"type"`
	Error         string     `json:"error,omitempty"`
	Score         *float32   `json:"score,omitempty"`
	PoseLandmarks []Landmark `json:"poseLandmarks"`
}

// WSEstimator talks to a pose inference service over a websocket. Each
// frame is sent as one JPEG binary message and answered by one JSON text
// message.
type WSEstimator struct {
	URL         string
	DialTimeout time.Duration
	JPEGQuality int

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	buf    bytes.Buffer
}

// NewWSEstimator creates an estimator for url. The connection is opened by
// Configure.
func NewWSEstimator(url string, dialTimeout time.Duration) *WSEstimator {
	return &WSEstimator{URL: url, DialTimeout: dialTimeout, JPEGQuality: 80}
}

// Configure connects and sends the model options.
func (e *WSEstimator) Configure(ctx context.Context, opts Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if e.conn == nil {
		dialCtx := ctx
		if e.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, e.DialTimeout)
			defer cancel()
		}
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, e.URL, nil)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", e.URL, err)
		}
		e.conn = conn
	}

	data, err := json.Marshal(configMessage{Type: "config", Options: opts})
	if err != nil {
		return err
	}
	if err := e.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("sending config: %w", err)
	}
	return nil
}

// Estimate sends frame and waits for the landmarks.
func (e *WSEstimator) Estimate(ctx context.Context, frame capture.Frame) (*LandmarkFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.conn == nil {
		return nil, ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	conn := e.conn
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)
	// Unblock the read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, frame.Image, &jpeg.Options{Quality: e.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	if err := e.conn.WriteMessage(websocket.BinaryMessage, e.buf.Bytes()); err != nil {
		return nil, fmt.Errorf("sending frame: %w", err)
	}

	for {
		mt, data, err := e.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("reading result: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
		switch msg.Type {
		case "ack":
			continue
		case "error":
			return nil, fmt.Errorf("pose service: %s", msg.Error)
		}
		if len(msg.PoseLandmarks) == 0 {
			return nil, nil
		}
		out := &LandmarkFrame{
			Seq:       frame.Seq,
			Time:      frame.Time,
			Score:     1,
			Landmarks: msg.PoseLandmarks,
		}
		if msg.Score != nil {
			out.Score = *msg.Score
		}
		for i := range out.Landmarks {
			out.Landmarks[i].Present = true
		}
		return out, nil
	}
}

// Close sends a close frame and releases the connection. Safe to call twice.
func (e *WSEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = e.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := e.conn.Close()
	e.conn = nil
	return err
}
