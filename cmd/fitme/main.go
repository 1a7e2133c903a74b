// Package main is the entry point for the FitMe AR viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/config"
	"github.com/Faultbox/fitme-ar/internal/logger"
	"github.com/Faultbox/fitme-ar/internal/render"
	"github.com/Faultbox/fitme-ar/internal/session"
	"github.com/Faultbox/fitme-ar/internal/stream"
)

const windowTitle = "FitMe AR"

// SDL and GL calls must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== FitMe AR ===", zap.String("surface", cfg.Display.Surface))
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("session error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("session closed normally")
}

func run(cfg *config.Config) error {
	surface, err := newSurface(cfg)
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}

	sess, err := session.FromConfig(cfg, surface)
	if err != nil {
		surface.Close()
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		return err
	}
	if err := sess.Run(ctx); err != nil {
		return err
	}
	return sess.Close()
}

func newSurface(cfg *config.Config) (render.Surface, error) {
	switch cfg.Display.Surface {
	case "window":
		return render.NewWindowSurface(render.WindowConfig{
			Title:      windowTitle,
			Width:      cfg.Display.Width,
			Height:     cfg.Display.Height,
			Fullscreen: cfg.Display.Fullscreen,
			VSync:      cfg.Display.VSync,

			SnapshotDir: cfg.Display.SnapshotDir,
		})
	case "stream":
		s := stream.NewSurface(cfg.Display.Width, cfg.Display.Height, cfg.Stream.JPEGQuality)
		if err := s.Start(cfg.Stream.Listen); err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("streaming", zap.String("addr", s.Server().Addr()))
		return s, nil
	case "offscreen":
		return render.NewOffscreenSurface(cfg.Display.Width, cfg.Display.Height), nil
	default:
		return nil, fmt.Errorf("unknown display surface %q", cfg.Display.Surface)
	}
}
