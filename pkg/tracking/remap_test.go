package tracking

import (
	"errors"
	"math"
	"testing"
)

func TestRemap(t *testing.T) {
	tests := []struct {
		name                                string
		value, inMin, inMax, outMin, outMax float64
		clamped                             bool
		want                                float64
	}{
		{"low endpoint", 0, 0, 10, 0, 1, true, 0},
		{"high endpoint", 10, 0, 10, 0, 1, true, 1},
		{"midpoint", 5, 0, 10, -1, 1, true, 0},
		{"clamped above", 20, 0, 10, 0, 1, true, 1},
		{"clamped below", -5, 0, 10, 0, 1, true, 0},
		{"extrapolated", 20, 0, 10, 0, 1, false, 2},
		{"inverted input", 0.1, 0.1, -0.1, -1, 1, true, -1},
		{"inverted input far side", -0.5, 0.1, -0.1, -1, 1, true, 1},
		{"inverted output clamps", 20, 0, 10, 1, 0, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remap(tt.value, tt.inMin, tt.inMax, tt.outMin, tt.outMax, tt.clamped)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Remap(%v, %v, %v, %v, %v, %v) = %v, want %v",
					tt.value, tt.inMin, tt.inMax, tt.outMin, tt.outMax, tt.clamped, got, tt.want)
			}
		})
	}
}

func TestRemapClampedStaysInRange(t *testing.T) {
	for v := -2.0; v <= 2.0; v += 0.01 {
		got := Remap(v, PitchRatioLow, PitchRatioHigh, -1, 1, true)
		if got < -1 || got > 1 {
			t.Fatalf("Remap(%v) = %v, outside [-1, 1]", v, got)
		}
	}
}

func TestBandValidate(t *testing.T) {
	tests := []struct {
		name    string
		band    Band
		wantErr bool
	}{
		{"default pitch", DefaultCalibration().Pitch, false},
		{"inverted yaw", DefaultCalibration().Yaw, false},
		{"zero width", Band{InMin: 0.2, InMax: 0.2, OutMin: 0, OutMax: 1}, true},
		{"nan edge", Band{InMin: math.NaN(), InMax: 1, OutMin: 0, OutMax: 1}, true},
		{"inf output", Band{InMin: 0, InMax: 1, OutMin: 0, OutMax: math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.band.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrDegenerateBand) {
					t.Errorf("Validate() = %v, want ErrDegenerateBand", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestDefaultCalibration(t *testing.T) {
	cal := DefaultCalibration()
	if err := cal.Validate(); err != nil {
		t.Fatalf("DefaultCalibration invalid: %v", err)
	}
	if got := cal.Validity.Apply(0.2); got != 0 {
		t.Errorf("validity at typical ratio = %v, want 0", got)
	}
	if got := cal.Validity.Apply(0.5); got != 1 {
		t.Errorf("validity past band = %v, want 1", got)
	}

	cal.Yaw.InMax = cal.Yaw.InMin
	if err := cal.Validate(); !errors.Is(err, ErrDegenerateBand) {
		t.Errorf("Validate() = %v, want ErrDegenerateBand", err)
	}
}
