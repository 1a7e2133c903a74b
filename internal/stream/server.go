// Package stream serves rendered frames to browsers over a websocket.
package stream

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/logger"
	"github.com/Faultbox/fitme-ar/internal/render"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// Message is the JSON envelope of text messages in both directions.
type Message struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status  string `json:"status"`
	Frames  uint64 `json:"frames"`
	Clients int    `json:"clients"`
}

// ResizeFunc receives a viewport size requested by a client.
type ResizeFunc func(width, height int)

type client struct {
	conn   *websocket.Conn
	frames chan []byte // latest frame only
	texts  chan []byte
}

// Server pushes JPEG frames to every connected client. Clients may send
// {"type":"resize","width":W,"height":H} to change the render size.
type Server struct {
	app      *fiber.App
	log      *zap.Logger
	onResize ResizeFunc

	mu      sync.Mutex
	clients map[*client]struct{}
	status  string

	frames   atomic.Uint64
	ln       net.Listener
	shutdown sync.Once
}

// MaxViewport bounds each side of a client resize request.
const MaxViewport = render.MaxSurfaceSize

// NewServer creates a server. onResize may be nil.
func NewServer(onResize ResizeFunc) *Server {
	s := &Server{
		log:      logger.Named("stream"),
		onResize: onResize,
		clients:  make(map[*client]struct{}),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "fitme-ar stream",
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/status", s.handleStatus)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stream listen %s: %w", addr, err)
	}
	s.ln = ln
	go func() {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error("stream server stopped", zap.Error(err))
		}
	}()
	s.log.Info("stream server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown closes the listener and all client connections. It is safe to
// call more than once.
func (s *Server) Shutdown() error {
	var err error
	s.shutdown.Do(func() {
		s.mu.Lock()
		for c := range s.clients {
			c.conn.Close()
		}
		s.mu.Unlock()
		err = s.app.ShutdownWithTimeout(2 * time.Second)
	})
	return err
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Frames returns the number of frames broadcast.
func (s *Server) Frames() uint64 {
	return s.frames.Load()
}

// Status returns the last status set.
func (s *Server) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus records status and sends it to every client.
func (s *Server) SetStatus(status string) {
	msg, err := json.Marshal(Message{Type: "status", Status: status})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == s.status {
		return
	}
	s.status = status
	for c := range s.clients {
		select {
		case c.texts <- msg:
		default:
		}
	}
}

// Broadcast queues frame for every client. A client still sending the
// previous frame skips it.
func (s *Server) Broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case <-c.frames:
		default:
		}
		c.frames <- frame
	}
	s.frames.Add(1)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.Lock()
	resp := StatusResponse{Status: s.status, Frames: s.frames.Load(), Clients: len(s.clients)}
	s.mu.Unlock()
	return c.JSON(resp)
}

func (s *Server) handleWebSocket(conn *websocket.Conn) {
	cl := &client{
		conn:   conn,
		frames: make(chan []byte, 1),
		texts:  make(chan []byte, 8),
	}
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	if s.status != "" {
		if msg, err := json.Marshal(Message{Type: "status", Status: s.status}); err == nil {
			cl.texts <- msg
		}
	}
	s.mu.Unlock()
	s.log.Info("stream client connected", zap.String("remote", conn.RemoteAddr().String()))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(conn, cl, done)
	}()

	s.readLoop(conn)

	close(done)
	wg.Wait()
	s.mu.Lock()
	delete(s.clients, cl)
	s.mu.Unlock()
	s.log.Info("stream client disconnected", zap.String("remote", conn.RemoteAddr().String()))
}

func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("stream client error", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("ignoring malformed client message", zap.Error(err))
			continue
		}
		if msg.Type != "resize" || msg.Width <= 0 || msg.Height <= 0 || s.onResize == nil {
			continue
		}
		w, h := min(msg.Width, MaxViewport), min(msg.Height, MaxViewport)
		if w != msg.Width || h != msg.Height {
			s.log.Debug("clamping client viewport",
				zap.Int("width", msg.Width), zap.Int("height", msg.Height), zap.Int("max", MaxViewport))
		}
		s.onResize(w, h)
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, cl *client, done <-chan struct{}) {
	for {
		var (
			mt   int
			data []byte
		)
		select {
		case <-done:
			return
		case data = <-cl.texts:
			mt = websocket.TextMessage
		case data = <-cl.frames:
			mt = websocket.BinaryMessage
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			s.log.Debug("stream write failed", zap.Error(err))
			conn.Close()
			return
		}
	}
}
