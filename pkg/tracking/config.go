package tracking

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all tunable parameters for face tracking
type Config struct {
	// Timing
	DetectionInterval time.Duration // How often a detection is attempted
	RenderInterval    time.Duration // How often consumers should sample signals

	// Concurrency
	MaxInFlight int // Detections allowed to overlap before ticks are skipped

	// Smoothing
	PositionSpring    SpringConfig  // pos_x, pos_y, validity
	OrientationSpring SpringConfig  // yaw, pitch
	MaxGap            time.Duration // Integration gaps longer than this settle immediately

	// Calibration
	Calibration Calibration

	// Logging
	MissLogThreshold int // Consecutive misses before "face lost" is logged
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		DetectionInterval: 100 * time.Millisecond, // 10 detections per second
		RenderInterval:    16 * time.Millisecond,  // ~60 samples per second

		MaxInFlight: 2,

		PositionSpring:    PositionSpring(),
		OrientationSpring: OrientationSpring(),
		MaxGap:            10 * time.Second,

		Calibration: DefaultCalibration(),

		MissLogThreshold: 10, // ~1s without a face
	}
}

// SlowConfig returns a configuration for calmer, heavier motion
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.DetectionInterval = 200 * time.Millisecond
	cfg.MaxInFlight = 1
	cfg.PositionSpring.Mass = 2
	cfg.PositionSpring.Damping = CriticalDamping(100, 2)
	cfg.OrientationSpring.Mass = 8
	cfg.OrientationSpring.Damping = CriticalDamping(100, 8)
	return cfg
}

// ResponsiveConfig returns a configuration for snappier following
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.DetectionInterval = 50 * time.Millisecond
	cfg.MaxInFlight = 3
	cfg.PositionSpring.Stiffness = 200
	cfg.PositionSpring.Damping = CriticalDamping(200, 1)
	cfg.OrientationSpring.Stiffness = 200
	cfg.OrientationSpring.Damping = CriticalDamping(200, 4)
	return cfg
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.DetectionInterval <= 0 {
		errs = append(errs, fmt.Errorf("detection interval must be positive, got %v", c.DetectionInterval))
	}
	if c.RenderInterval <= 0 {
		errs = append(errs, fmt.Errorf("render interval must be positive, got %v", c.RenderInterval))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("max in flight must be at least 1, got %d", c.MaxInFlight))
	}
	if c.MaxGap < 0 {
		errs = append(errs, fmt.Errorf("max gap must not be negative, got %v", c.MaxGap))
	}
	if err := c.PositionSpring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("position spring: %w", err))
	}
	if err := c.OrientationSpring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("orientation spring: %w", err))
	}
	if err := c.Calibration.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
