package stream

import (
	"bytes"
	"image"
	"image/jpeg"

	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/engine/camera"
	"github.com/Faultbox/fitme-ar/internal/engine/scene"
	"github.com/Faultbox/fitme-ar/internal/render"
)

// Surface renders offscreen and pushes every frame to the server's
// clients as JPEG. Client resize requests arrive through Poll.
type Surface struct {
	*render.OffscreenSurface
	srv     *Server
	quality int
	buf     bytes.Buffer
}

// NewSurface creates a w×h surface and its server. Call Start to listen.
func NewSurface(w, h, quality int) *Surface {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	off := render.NewOffscreenSurface(w, h)
	return &Surface{
		OffscreenSurface: off,
		srv:              NewServer(off.PushResize),
		quality:          quality,
	}
}

// Server returns the underlying server.
func (s *Surface) Server() *Server {
	return s.srv
}

// Start listens on addr.
func (s *Surface) Start(addr string) error {
	return s.srv.Start(addr)
}

// Draw renders the frame and broadcasts it when anyone is watching.
func (s *Surface) Draw(sc *scene.Scene, cam *camera.Perspective, background image.Image) error {
	if err := s.OffscreenSurface.Draw(sc, cam, background); err != nil {
		return err
	}
	if s.srv.Clients() == 0 {
		return nil
	}
	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, s.Snapshot(), &jpeg.Options{Quality: s.quality}); err != nil {
		s.srv.log.Warn("frame encode failed", zap.Error(err))
		return nil
	}
	frame := make([]byte, s.buf.Len())
	copy(frame, s.buf.Bytes())
	s.srv.Broadcast(frame)
	return nil
}

// SetStatus records status and sends it to clients.
func (s *Surface) SetStatus(status string) {
	s.OffscreenSurface.SetStatus(status)
	s.srv.SetStatus(status)
}

// Close stops the server and the offscreen surface.
func (s *Surface) Close() error {
	s.OffscreenSurface.Close()
	return s.srv.Shutdown()
}

var _ render.Surface = (*Surface)(nil)
