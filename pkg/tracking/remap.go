package tracking

import (
	"fmt"
	"math"
)

// Calibration band edges. These were tuned by hand against a laptop webcam at
// arm's length and are not derived from face geometry.
const (
	// PitchRatioLow and PitchRatioHigh bound the chin-to-mouth ratio mapped
	// onto pitch [-1, 1].
	PitchRatioLow  = 0.15
	PitchRatioHigh = 0.3

	// YawRatioLow and YawRatioHigh bound the eye-midpoint-to-nose ratio
	// mapped onto yaw [-1, 1]. The band is inverted so turning toward the
	// viewer's right reads as positive yaw on a mirrored preview.
	YawRatioLow  = 0.1
	YawRatioHigh = -0.1

	// ValidityRatioLow and ValidityRatioHigh bound the chin-to-mouth ratio
	// mapped onto validity [0, 1]. Ratios past the pitch band mean the
	// landmarks are no longer trustworthy.
	ValidityRatioLow  = 0.3
	ValidityRatioHigh = 0.4
)

// Remap linearly maps value from [inMin, inMax] onto [outMin, outMax]. With
// clamped set the result is limited to the output range. A zero-width input
// range yields a non-finite result; bands are validated at startup instead.
func Remap(value, inMin, inMax, outMin, outMax float64, clamped bool) float64 {
	result := (value-inMin)/(inMax-inMin)*(outMax-outMin) + outMin
	if !clamped {
		return result
	}
	return clamp(result, math.Min(outMin, outMax), math.Max(outMin, outMax))
}

// Band is one calibration mapping from a raw geometric ratio onto a signal range.
type Band struct {
	InMin  float64 `json:"in_min"`
	InMax  float64 `json:"in_max"`
	OutMin float64 `json:"out_min"`
	OutMax float64 `json:"out_max"`
}

// Apply remaps v through the band, clamped.
func (b Band) Apply(v float64) float64 {
	return Remap(v, b.InMin, b.InMax, b.OutMin, b.OutMax, true)
}

// Validate rejects bands that would divide by zero or produce non-finite output.
func (b Band) Validate() error {
	for _, v := range []float64{b.InMin, b.InMax, b.OutMin, b.OutMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite edge in %+v", ErrDegenerateBand, b)
		}
	}
	if b.InMin == b.InMax {
		return fmt.Errorf("%w: zero-width input range [%v, %v]", ErrDegenerateBand, b.InMin, b.InMax)
	}
	return nil
}

// Calibration holds the bands for every remapped signal.
type Calibration struct {
	Pitch    Band `json:"pitch"`
	Yaw      Band `json:"yaw"`
	Validity Band `json:"validity"`
}

// DefaultCalibration returns the hand-tuned bands.
func DefaultCalibration() Calibration {
	return Calibration{
		Pitch:    Band{InMin: PitchRatioLow, InMax: PitchRatioHigh, OutMin: -1, OutMax: 1},
		Yaw:      Band{InMin: YawRatioLow, InMax: YawRatioHigh, OutMin: -1, OutMax: 1},
		Validity: Band{InMin: ValidityRatioLow, InMax: ValidityRatioHigh, OutMin: 0, OutMax: 1},
	}
}

// Validate checks every band.
func (c Calibration) Validate() error {
	if err := c.Pitch.Validate(); err != nil {
		return fmt.Errorf("pitch band: %w", err)
	}
	if err := c.Yaw.Validate(); err != nil {
		return fmt.Errorf("yaw band: %w", err)
	}
	if err := c.Validity.Validate(); err != nil {
		return fmt.Errorf("validity band: %w", err)
	}
	return nil
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
