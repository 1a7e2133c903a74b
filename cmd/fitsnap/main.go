// fitsnap renders a fitted garment headlessly and writes the frame to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/fitme-ar/internal/config"
	"github.com/Faultbox/fitme-ar/internal/engine/debug"
	"github.com/Faultbox/fitme-ar/internal/logger"
	"github.com/Faultbox/fitme-ar/internal/render"
	"github.com/Faultbox/fitme-ar/internal/session"
)

var (
	flagOut     = flag.String("out", ".", "Output directory")
	flagFormat  = flag.String("format", debug.FormatWebP, "Output format: webp or png")
	flagFrames  = flag.Int("frames", 1, "Frames to render after the mesh is fitted")
	flagTimeout = flag.Duration("timeout", 30*time.Second, "Give up if the mesh is not fitted in time")
	flagMesh    = flag.String("mesh", "", "Mesh locator overriding the measurement source")
)

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

	name, err := snap(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
	fmt.Println(name)
}

func snap(cfg *config.Config) (string, error) {
	if *flagMesh != "" {
		cfg.Measurements.Static.MeshURL = *flagMesh
	}
	shots, err := debug.NewScreenshotCapture(*flagOut, "fitme", *flagFormat)
	if err != nil {
		return "", err
	}

	surface := render.NewOffscreenSurface(cfg.Display.Width, cfg.Display.Height)
	sess, err := session.FromConfig(cfg, surface)
	if err != nil {
		surface.Close()
		return "", err
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()
	if err := sess.Start(ctx); err != nil {
		return "", err
	}

	loop := sess.Loop()
	tick := time.NewTicker(time.Second / render.DefaultFPS)
	defer tick.Stop()

	// Tick until the load settles, then render the requested frames.
	remaining := *flagFrames
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("mesh not fitted: %w (status %q)", ctx.Err(), sess.Status())
		case now := <-tick.C:
			if _, err := loop.Tick(now); err != nil {
				return "", err
			}
		}
		switch sess.State() {
		case session.StateFailed:
			return "", sess.Err()
		case session.StateReady:
			remaining--
		}
	}

	logger.Info("snapshot rendered",
		zap.String("session", sess.ID()),
		zap.Uint64("frames", loop.Frames()))
	return shots.CaptureFromImage(surface.Snapshot())
}
