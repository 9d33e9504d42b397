package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/pkg/camera"
	"github.com/teslashibe/go-mirror/pkg/hub"
	"github.com/teslashibe/go-mirror/pkg/tracking"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Camera  *camera.Info         `json:"camera"`
	Tracker tracking.Status      `json:"tracker"`
	Hubs    map[string]hub.Stats `json:"hubs"`
}

// CameraConfigRequest is the body of POST /api/camera/config. Preset, when
// set, is applied instead of Config.
type CameraConfigRequest struct {
	Preset string         `json:"preset,omitempty"`
	Config *camera.Config `json:"config,omitempty"`
}

// handleStatus returns camera, model, and tracker state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{
		Tracker: s.tracker.Status(),
		Hubs: map[string]hub.Stats{
			"signals": s.signalsHub.Stats(),
			"debug":   s.debugHub.Stats(),
			"camera":  s.cameraHub.Stats(),
		},
	}
	if s.camera != nil {
		info := s.camera.Info()
		resp.Camera = &info
	}
	return c.JSON(resp)
}

// handleSignals returns the current smoothed signals
func (s *Server) handleSignals(c *fiber.Ctx) error {
	return c.JSON(s.signalsMessage())
}

// handleGetTuning returns the runtime tuning parameters
func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.tracker.GetTuningParams())
}

// handleSetTuning applies a partial tuning update
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	var params tracking.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid tuning body: " + err.Error(),
		})
	}
	if err := s.tracker.SetTuningParams(params); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if s.OnTuningChange != nil {
		s.OnTuningChange(params)
	}
	return c.JSON(s.tracker.GetTuningParams())
}

// handleCameraInfo returns the camera status and config
func (s *Server) handleCameraInfo(c *fiber.Ctx) error {
	if s.camera == nil {
		return cameraUnavailable(c)
	}
	return c.JSON(s.camera.Info())
}

// handleCameraStart opens the configured camera
func (s *Server) handleCameraStart(c *fiber.Ctx) error {
	if s.camera == nil {
		return cameraUnavailable(c)
	}
	if err := s.camera.Start(); err != nil {
		return cameraError(c, s.camera, err)
	}
	return c.JSON(s.camera.Info())
}

// handleCameraStop releases the camera
func (s *Server) handleCameraStop(c *fiber.Ctx) error {
	if s.camera == nil {
		return cameraUnavailable(c)
	}
	if err := s.camera.Stop(); err != nil {
		return cameraError(c, s.camera, err)
	}
	return c.JSON(s.camera.Info())
}

// handleCameraDevice switches to another capture device
func (s *Server) handleCameraDevice(c *fiber.Ctx) error {
	if s.camera == nil {
		return cameraUnavailable(c)
	}
	id, err := c.ParamsInt("id")
	if err != nil || id < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "device id must be a non-negative integer",
		})
	}
	if err := s.camera.SwitchDevice(id); err != nil {
		return cameraError(c, s.camera, err)
	}
	return c.JSON(s.camera.Info())
}

// handleCameraConfig applies a preset or a full camera config
func (s *Server) handleCameraConfig(c *fiber.Ctx) error {
	if s.camera == nil {
		return cameraUnavailable(c)
	}
	var req CameraConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid camera config body: " + err.Error(),
		})
	}

	var err error
	switch {
	case req.Preset != "":
		err = s.camera.ApplyPreset(req.Preset)
	case req.Config != nil:
		err = s.camera.SetConfig(*req.Config)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "preset or config required",
			"presets": camera.PresetNames(),
		})
	}
	if err != nil {
		return cameraError(c, s.camera, err)
	}
	return c.JSON(s.camera.Info())
}

func cameraUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "camera not configured",
	})
}

func cameraError(c *fiber.Ctx, cam *camera.Manager, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, camera.ErrInvalidConfig):
		code = fiber.StatusBadRequest
	case errors.Is(err, camera.ErrNotStarted):
		code = fiber.StatusConflict
	case errors.Is(err, camera.ErrPermissionDenied):
		code = fiber.StatusForbidden
	case errors.Is(err, camera.ErrNoCamera):
		code = fiber.StatusNotFound
	}
	return c.Status(code).JSON(fiber.Map{
		"error":  err.Error(),
		"camera": cam.Info(),
	})
}

// handleSignalsWS streams smoothed signals at the render cadence
func (s *Server) handleSignalsWS(c *websocket.Conn) {
	greeting, err := json.Marshal(s.signalsMessage())
	if err != nil {
		log.Error("encode signals greeting", "error", err)
		return
	}
	hub.NewClient(s.signalsHub, c, hub.NewJSONMessage(greeting)).Run()
}

// handleDebugWS streams face overlay paths after each tracker update
func (s *Server) handleDebugWS(c *websocket.Conn) {
	hub.NewClient(s.debugHub, c).Run()
}

// handleCameraWS streams JPEG preview frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	var greeting []hub.Message
	if s.camera != nil {
		if frame, ok := s.camera.Frame(); ok {
			greeting = append(greeting, hub.NewBinaryMessage(frame.JPEG))
		}
	}
	hub.NewClient(s.cameraHub, c, greeting...).Run()
}
