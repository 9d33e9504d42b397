package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

// Source is a running frame producer.
type Source interface {
	// Start begins producing frames; onFrame may be nil.
	Start(onFrame func(detection.Frame))
	// Frame returns the latest frame, ok is false until one exists.
	Frame() (frame detection.Frame, ok bool)
	// Size returns the negotiated frame size.
	Size() (width, height int)
	// Stop releases the device.
	Stop() error
}

// Opener opens device deviceID with cfg.
type Opener func(deviceID int, cfg Config) (Source, error)

// Info is the camera state reported by the status API.
type Info struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	// DeviceID is the open device while running, otherwise the configured one.
	DeviceID int    `json:"device_id"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Config   Config `json:"config"`
}

// Manager holds the camera configuration, owns the running source, and tracks
// the access status.
type Manager struct {
	open Opener

	// ops serializes Start, Stop, and reconfiguration.
	ops sync.Mutex

	mu       sync.RWMutex
	config   Config
	status   Status
	lastErr  string
	source   Source
	deviceID int

	// OnFeedChange is called with the new source after a start, and with nil
	// after a stop.
	OnFeedChange func(src Source)

	// onFrame is called for every captured frame. Guarded by mu.
	onFrame func(frame detection.Frame)

	// OnStatusChange is called whenever the status moves.
	OnStatusChange func(status Status)
}

// NewManager creates a camera manager. A nil opener uses real webcams.
func NewManager(cfg Config, open Opener) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		open = OpenSource
	}
	return &Manager{
		open:   open,
		config: cfg,
		status: StatusNotRequested,
	}, nil
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Info returns the current status and device details.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := Info{
		Status:   m.status,
		Error:    m.lastErr,
		DeviceID: m.deviceID,
		Config:   m.config,
	}
	if m.source != nil {
		info.Width, info.Height = m.source.Size()
	} else {
		info.DeviceID = m.config.DeviceID
	}
	return info
}

// Status returns the access status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Start opens the configured device, falling back to device 0 when allowed.
// Starting a running camera is a no-op.
func (m *Manager) Start() error {
	m.ops.Lock()
	defer m.ops.Unlock()
	return m.start()
}

func (m *Manager) start() error {
	m.mu.RLock()
	running := m.source != nil
	cfg := m.config
	m.mu.RUnlock()
	if running {
		return nil
	}

	m.setStatus(StatusPending, "")

	src, deviceID, err := m.openWithFallback(cfg)
	if err != nil {
		m.setStatus(statusForError(err), err.Error())
		log.Error("camera start failed", "device", cfg.DeviceID, "error", err)
		return err
	}

	m.mu.Lock()
	m.source = src
	m.deviceID = deviceID
	m.mu.Unlock()

	src.Start(m.handleFrame)
	m.setStatus(StatusAccepted, "")
	if fn := m.feedCallback(); fn != nil {
		fn(src)
	}
	return nil
}

func (m *Manager) openWithFallback(cfg Config) (Source, int, error) {
	src, err := m.open(cfg.DeviceID, cfg)
	if err == nil {
		return src, cfg.DeviceID, nil
	}
	if !cfg.FallbackToDefault || cfg.DeviceID == 0 || errors.Is(err, ErrPermissionDenied) {
		return nil, 0, err
	}

	log.Warn("preferred camera unavailable, trying default", "device", cfg.DeviceID, "error", err)
	src, fallbackErr := m.open(0, cfg)
	if fallbackErr != nil {
		return nil, 0, errors.Join(err, fallbackErr)
	}
	return src, 0, nil
}

// Stop closes the running camera.
func (m *Manager) Stop() error {
	m.ops.Lock()
	defer m.ops.Unlock()
	return m.stop()
}

func (m *Manager) stop() error {
	m.mu.Lock()
	src := m.source
	m.source = nil
	m.mu.Unlock()
	if src == nil {
		return ErrNotStarted
	}

	if fn := m.feedCallback(); fn != nil {
		fn(nil)
	}
	m.setStatus(StatusNotRequested, "")
	if err := src.Stop(); err != nil {
		return fmt.Errorf("stop camera: %w", err)
	}
	return nil
}

// SetConfig validates and stores cfg, restarting the camera if it is running.
func (m *Manager) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	m.mu.Lock()
	m.config = cfg
	running := m.source != nil
	m.mu.Unlock()

	if !running {
		return nil
	}
	if err := m.stop(); err != nil && !errors.Is(err, ErrNotStarted) {
		log.Warn("camera stop during reconfigure", "error", err)
	}
	return m.start()
}

// SwitchDevice selects a different device, restarting if running.
func (m *Manager) SwitchDevice(deviceID int) error {
	cfg := m.GetConfig()
	cfg.DeviceID = deviceID
	log.Info("switching camera", "device", deviceID)
	return m.SetConfig(cfg)
}

// ApplyPreset replaces the resolution settings with a named preset, keeping
// the selected device.
func (m *Manager) ApplyPreset(name string) error {
	preset := GetPreset(name)
	if preset == nil {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	cfg := *preset
	cfg.DeviceID = m.GetConfig().DeviceID
	return m.SetConfig(cfg)
}

// Frame returns the running source's latest frame.
func (m *Manager) Frame() (detection.Frame, bool) {
	m.mu.RLock()
	src := m.source
	m.mu.RUnlock()
	if src == nil {
		return detection.Frame{}, false
	}
	return src.Frame()
}

// SetOnFrame sets the per-frame callback. It may be called while capturing.
func (m *Manager) SetOnFrame(fn func(frame detection.Frame)) {
	m.mu.Lock()
	m.onFrame = fn
	m.mu.Unlock()
}

func (m *Manager) handleFrame(frame detection.Frame) {
	m.mu.RLock()
	fn := m.onFrame
	m.mu.RUnlock()
	if fn != nil {
		fn(frame)
	}
}

func (m *Manager) feedCallback() func(Source) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.OnFeedChange
}

func (m *Manager) setStatus(status Status, errMsg string) {
	m.mu.Lock()
	changed := m.status != status
	m.status = status
	m.lastErr = errMsg
	fn := m.OnStatusChange
	m.mu.Unlock()

	if changed {
		log.Info("camera status", "status", status)
		if fn != nil {
			fn(status)
		}
	}
}
