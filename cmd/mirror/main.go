// Command mirror runs the face tracker against a local webcam and serves the
// smoothed facing signals over HTTP and websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-mirror/internal/config"
	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/pkg/camera"
	"github.com/teslashibe/go-mirror/pkg/debug"
	"github.com/teslashibe/go-mirror/pkg/tracking"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
	"github.com/teslashibe/go-mirror/pkg/web"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file to load before reading env vars")
	addr := flag.String("addr", "", "Listen address (overrides MIRROR_ADDR)")
	preset := flag.String("preset", "", "Tracking preset: default, slow, responsive (overrides TRACKING_PRESET)")
	verbose := flag.Bool("debug", false, "Enable debug logging")
	debugTracking := flag.Bool("debug-tracking", false, "Log every detection and raw ratio")
	noCamera := flag.Bool("no-camera", false, "Do not open the camera at startup")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *preset != "" {
		cfg.Preset = *preset
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if *noCamera {
		cfg.CameraAutostart = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel, log.Options{File: cfg.LogFile})
	debug.Tracking = cfg.DebugTracking || *debugTracking

	if err := run(cfg); err != nil {
		log.Error("mirror exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oracle := detection.NewGoCV(cfg.Detection())
	defer oracle.Close()

	tracker, err := tracking.New(cfg.Tracking(), oracle)
	if err != nil {
		return err
	}

	params, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return err
	}
	if err := tracker.SetTuningParams(params); err != nil {
		return fmt.Errorf("apply %s: %w", cfg.TuningFile, err)
	}

	cam, err := camera.NewManager(cfg.Camera(), nil)
	if err != nil {
		return err
	}
	cam.OnFeedChange = func(src camera.Source) {
		if src == nil {
			tracker.ClearFeed()
			return
		}
		tracker.SetFeed(src)
	}

	server := web.NewServer(web.Options{Addr: cfg.Addr, StaticDir: cfg.StaticDir}, tracker, cam)
	if cfg.TuningFile != "" {
		server.OnTuningChange = func(tracking.TuningParams) {
			if err := config.SaveTuning(cfg.TuningFile, tracker.GetTuningParams()); err != nil {
				log.Warn("tuning not persisted", "file", cfg.TuningFile, "error", err)
			}
		}
	}

	log.Info("mirror starting",
		"addr", cfg.Addr,
		"preset", cfg.Preset,
		"camera", cfg.CameraDevice,
		"debug_tracking", debug.Tracking)

	// Models load in the background; the tracker reports no face until ready.
	go func() {
		_ = oracle.Load()
	}()

	go tracker.Run(ctx)

	if cfg.CameraAutostart {
		if err := cam.Start(); err != nil {
			log.Warn("camera not started; start it from /api/camera/start", "error", err)
		}
	}

	err = server.Run(ctx)

	if stopErr := cam.Stop(); stopErr != nil && !errors.Is(stopErr, camera.ErrNotStarted) {
		log.Warn("camera stop", "error", stopErr)
	}
	log.Info("mirror stopped")
	return err
}
