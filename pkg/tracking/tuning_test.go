package tracking

import (
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

func TestGetTuningParams(t *testing.T) {
	tr, _ := newTestTracker(t, DefaultConfig(), detection.NewMockOracle())
	p := tr.GetTuningParams()

	if p.DetectionHz != 10 {
		t.Errorf("DetectionHz = %v, want 10", p.DetectionHz)
	}
	if p.MaxInFlight != 2 {
		t.Errorf("MaxInFlight = %d, want 2", p.MaxInFlight)
	}
	if *p.PitchBand != DefaultCalibration().Pitch {
		t.Errorf("PitchBand = %+v", *p.PitchBand)
	}
	if *p.OrientationSpring != OrientationSpring() {
		t.Errorf("OrientationSpring = %+v", *p.OrientationSpring)
	}
}

func TestSetTuningParamsApplies(t *testing.T) {
	tr, _ := newTestTracker(t, DefaultConfig(), detection.NewMockOracle())

	band := Band{InMin: 0.1, InMax: 0.35, OutMin: -1, OutMax: 1}
	spring := PositionSpring()
	spring.Stiffness = 150
	err := tr.SetTuningParams(TuningParams{
		PitchBand:      &band,
		PositionSpring: &spring,
		DetectionHz:    20,
		MaxInFlight:    3,
	})
	if err != nil {
		t.Fatalf("SetTuningParams: %v", err)
	}

	cfg := tr.Config()
	if cfg.Calibration.Pitch != band {
		t.Errorf("pitch band = %+v", cfg.Calibration.Pitch)
	}
	if cfg.Calibration.Yaw != DefaultCalibration().Yaw {
		t.Errorf("unset yaw band changed: %+v", cfg.Calibration.Yaw)
	}
	if cfg.MaxInFlight != 3 {
		t.Errorf("MaxInFlight = %d", cfg.MaxInFlight)
	}
	if cfg.DetectionInterval != 50*time.Millisecond {
		t.Errorf("DetectionInterval = %v", cfg.DetectionInterval)
	}
	if position, _ := tr.Smoother().SpringConfigs(); position != spring {
		t.Errorf("smoother position spring = %+v", position)
	}

	select {
	case d := <-tr.detectTickerReset:
		if d != 50*time.Millisecond {
			t.Errorf("ticker reset = %v, want 50ms", d)
		}
	default:
		t.Error("no ticker reset queued")
	}
}

func TestSetTuningParamsRejectsAtomically(t *testing.T) {
	tr, _ := newTestTracker(t, DefaultConfig(), detection.NewMockOracle())

	good := Band{InMin: 0.1, InMax: 0.35, OutMin: -1, OutMax: 1}
	bad := Band{InMin: 0.3, InMax: 0.3, OutMin: 0, OutMax: 1}
	err := tr.SetTuningParams(TuningParams{PitchBand: &good, ValidityBand: &bad, DetectionHz: 5})
	if !errors.Is(err, ErrDegenerateBand) {
		t.Fatalf("err = %v, want ErrDegenerateBand", err)
	}
	if got := tr.Config().Calibration; got != DefaultCalibration() {
		t.Errorf("calibration changed on rejected update: %+v", got)
	}
	if got := tr.Config().DetectionInterval; got != 100*time.Millisecond {
		t.Errorf("interval changed on rejected update: %v", got)
	}

	limp := OrientationSpring()
	limp.Mass = 0
	if err := tr.SetTuningParams(TuningParams{OrientationSpring: &limp}); !errors.Is(err, ErrInvalidSpring) {
		t.Errorf("err = %v, want ErrInvalidSpring", err)
	}
	if err := tr.SetTuningParams(TuningParams{MaxInFlight: -1}); err == nil {
		t.Error("negative MaxInFlight accepted")
	}
}

func TestSetDetectionHzClamps(t *testing.T) {
	tests := []struct {
		hz   float64
		want time.Duration
	}{
		{0.1, time.Second},
		{10, 100 * time.Millisecond},
		{500, time.Second / 30},
	}
	for _, tt := range tests {
		tr, _ := newTestTracker(t, DefaultConfig(), detection.NewMockOracle())
		tr.setDetectionHz(tt.hz)
		if got := <-tr.detectTickerReset; got != tt.want {
			t.Errorf("setDetectionHz(%v) queued %v, want %v", tt.hz, got, tt.want)
		}
	}
}

func TestSetDetectionHzKeepsLatest(t *testing.T) {
	tr, _ := newTestTracker(t, DefaultConfig(), detection.NewMockOracle())
	tr.setDetectionHz(5)
	tr.setDetectionHz(20)
	if got := <-tr.detectTickerReset; got != 50*time.Millisecond {
		t.Errorf("queued %v, want the latest 50ms", got)
	}
}
