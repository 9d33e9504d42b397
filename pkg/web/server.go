// Package web serves the face tracker over HTTP and websockets.
package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/pkg/camera"
	"github.com/teslashibe/go-mirror/pkg/hub"
	"github.com/teslashibe/go-mirror/pkg/tracking"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

// SignalsMessage is one sample on the signals stream.
type SignalsMessage struct {
	tracking.Signals
	HasFace bool      `json:"has_face"`
	At      time.Time `json:"at"`
}

// DebugMessage is the face overlay sent after each tracker update.
type DebugMessage struct {
	Tick     uint64               `json:"tick"`
	HasFace  bool                 `json:"has_face"`
	Raw      tracking.RawFacing   `json:"raw"`
	Measures tracking.RawMeasures `json:"measures"`
	Paths    []detection.Path     `json:"paths"`
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// StaticDir, when set, is served at /.
	StaticDir string
}

// Server is the tracker's HTTP and websocket surface
type Server struct {
	app     *fiber.App
	opts    Options
	tracker *tracking.Tracker
	camera  *camera.Manager

	// Hubs for websocket broadcast
	signalsHub *hub.Hub
	debugHub   *hub.Hub
	cameraHub  *hub.Hub

	// OnTuningChange is called after a tuning update is applied.
	OnTuningChange func(params tracking.TuningParams)
}

// NewServer creates the server. cam may be nil when frames do not come from a
// webcam; camera routes then report unavailable.
func NewServer(opts Options, tracker *tracking.Tracker, cam *camera.Manager) *Server {
	s := &Server{
		opts:       opts,
		tracker:    tracker,
		camera:     cam,
		signalsHub: hub.New("signals"),
		debugHub:   hub.New("debug"),
		cameraHub:  hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Mirror",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/signals", s.handleSignals)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	api.Get("/camera", s.handleCameraInfo)
	api.Post("/camera/start", s.handleCameraStart)
	api.Post("/camera/stop", s.handleCameraStop)
	api.Post("/camera/device/:id", s.handleCameraDevice)
	api.Post("/camera/config", s.handleCameraConfig)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/signals", websocket.New(s.handleSignalsWS))
	app.Get("/ws/debug", websocket.New(s.handleDebugWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	tracker.OnUpdate(s.publishDebug)
	if cam != nil {
		cam.SetOnFrame(s.publishFrame)
	}

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and render loop and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.startStreams(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("web server listening", "addr", s.opts.Addr)
		errCh <- s.app.Listen(s.opts.Addr)
	}()

	select {
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// startStreams runs the broadcast hubs and the render loop until ctx is done.
func (s *Server) startStreams(ctx context.Context) {
	go s.signalsHub.Run(ctx)
	go s.debugHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.renderLoop(ctx)
}

// renderLoop samples the smoother at the render cadence while anyone listens.
func (s *Server) renderLoop(ctx context.Context) {
	interval := s.tracker.Config().RenderInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.signalsHub.ClientCount() == 0 {
				continue
			}
			if err := s.signalsHub.BroadcastJSON(s.signalsMessage()); err != nil {
				log.Error("encode signals", "error", err)
			}
		}
	}
}

func (s *Server) signalsMessage() SignalsMessage {
	return SignalsMessage{
		Signals: s.tracker.Signals(),
		HasFace: s.tracker.HasFace(),
		At:      time.Now(),
	}
}

func (s *Server) publishDebug(u tracking.Update) {
	if s.debugHub.ClientCount() == 0 {
		return
	}
	if err := s.debugHub.BroadcastJSON(debugMessage(u)); err != nil {
		log.Error("encode debug overlay", "error", err)
	}
}

func debugMessage(u tracking.Update) DebugMessage {
	return DebugMessage{
		Tick:     u.Tick,
		HasFace:  u.HasFace,
		Raw:      u.Raw,
		Measures: u.Measures,
		Paths:    detection.Paths(u.Parts),
	}
}

func (s *Server) publishFrame(frame detection.Frame) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(frame.JPEG)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
