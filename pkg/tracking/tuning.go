package tracking

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-mirror/internal/log"
)

// Detection rate limits accepted by the tuning API.
const (
	MinDetectionHz = 1.0
	MaxDetectionHz = 30.0
)

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	// Calibration
	PitchBand    *Band `json:"pitch_band,omitempty"`
	YawBand      *Band `json:"yaw_band,omitempty"`
	ValidityBand *Band `json:"validity_band,omitempty"`

	// Smoothing
	PositionSpring    *SpringConfig `json:"position_spring,omitempty"`
	OrientationSpring *SpringConfig `json:"orientation_spring,omitempty"`

	// Scheduling
	DetectionHz float64 `json:"detection_hz,omitempty" validate:"gte=0"` // Detection frequency (1-30 Hz)
	MaxInFlight int     `json:"max_in_flight,omitempty" validate:"gte=0"`
}

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.RLock()
	cal := t.config.Calibration
	interval := t.config.DetectionInterval
	maxInFlight := t.config.MaxInFlight
	t.mu.RUnlock()

	position, orientation := t.smoother.SpringConfigs()
	return TuningParams{
		PitchBand:         &cal.Pitch,
		YawBand:           &cal.Yaw,
		ValidityBand:      &cal.Validity,
		PositionSpring:    &position,
		OrientationSpring: &orientation,
		DetectionHz:       1.0 / interval.Seconds(),
		MaxInFlight:       maxInFlight,
	}
}

// SetTuningParams updates tuning parameters at runtime. Only set fields are
// applied, and nothing is applied unless every set field is valid.
func (t *Tracker) SetTuningParams(params TuningParams) error {
	t.mu.Lock()
	cal := t.config.Calibration
	position, orientation := t.smoother.SpringConfigs()
	maxInFlight := t.config.MaxInFlight

	if params.PitchBand != nil {
		cal.Pitch = *params.PitchBand
	}
	if params.YawBand != nil {
		cal.Yaw = *params.YawBand
	}
	if params.ValidityBand != nil {
		cal.Validity = *params.ValidityBand
	}
	if params.PositionSpring != nil {
		position = *params.PositionSpring
	}
	if params.OrientationSpring != nil {
		orientation = *params.OrientationSpring
	}
	if params.MaxInFlight != 0 {
		maxInFlight = params.MaxInFlight
	}

	if err := validateTuning(cal, position, orientation, maxInFlight, params.DetectionHz); err != nil {
		t.mu.Unlock()
		return err
	}

	t.config.Calibration = cal
	t.config.PositionSpring = position
	t.config.OrientationSpring = orientation
	t.config.MaxInFlight = maxInFlight
	if params.DetectionHz > 0 {
		t.config.DetectionInterval = hzToInterval(params.DetectionHz)
	}
	t.mu.Unlock()

	t.smoother.Configure(position, orientation)

	// Detection rate (handled outside lock via channel)
	if params.DetectionHz > 0 {
		t.setDetectionHz(params.DetectionHz)
	}

	log.Info("tracking tuning updated",
		"detection_hz", params.DetectionHz,
		"max_in_flight", maxInFlight,
		"calibration", cal)
	return nil
}

func validateTuning(cal Calibration, position, orientation SpringConfig, maxInFlight int, hz float64) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	if err := position.Validate(); err != nil {
		return fmt.Errorf("position spring: %w", err)
	}
	if err := orientation.Validate(); err != nil {
		return fmt.Errorf("orientation spring: %w", err)
	}
	if maxInFlight < 1 {
		return fmt.Errorf("max in flight must be at least 1, got %d", maxInFlight)
	}
	if hz < 0 || !finite(hz) {
		return fmt.Errorf("detection hz must be positive, got %v", hz)
	}
	return nil
}

func hzToInterval(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / clamp(hz, MinDetectionHz, MaxDetectionHz))
}

// setDetectionHz updates the detection rate of a running loop.
// Valid range: 1-30 Hz; values outside are clamped.
func (t *Tracker) setDetectionHz(hz float64) {
	interval := hzToInterval(hz)

	// Send to the ticker reset channel (non-blocking)
	select {
	case t.detectTickerReset <- interval:
	default:
		// Channel full; drop the stale pending value and retry once
		select {
		case <-t.detectTickerReset:
		default:
		}
		select {
		case t.detectTickerReset <- interval:
		default:
		}
	}
}
