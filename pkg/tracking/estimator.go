package tracking

import (
	"fmt"

	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

// NoseIndex selects the nose landmark used for yaw. In the 68-point layout
// index 3 of the nose group is the tip. The yaw band is calibrated against
// this single point, not the nose centroid.
const NoseIndex = 3

// RawFacing is one tick's unsmoothed facing estimate.
type RawFacing struct {
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	PosX     float64 `json:"pos_x"`
	PosY     float64 `json:"pos_y"`
	Validity float64 `json:"validity"`
}

// NeutralFacing is the state before any detection: centered, level, untrusted.
func NeutralFacing() RawFacing {
	return RawFacing{PosX: 0.5, PosY: 0.5, Validity: 1}
}

// RawMeasures are the geometric ratios before calibration.
type RawMeasures struct {
	PitchRatio float64 `json:"pitch_ratio"`
	YawRatio   float64 `json:"yaw_ratio"`
}

// Estimate reduces a detection to raw facing values for a frame of the given
// pixel size. It never panics; anything it cannot use is reported as
// ErrMalformedDetection.
func Estimate(det *detection.Detection, frameW, frameH int, cal Calibration) (RawFacing, RawMeasures, error) {
	if !det.Complete() {
		return RawFacing{}, RawMeasures{}, fmt.Errorf("%w: incomplete parts or empty box", ErrMalformedDetection)
	}
	if frameW <= 0 || frameH <= 0 {
		return RawFacing{}, RawMeasures{}, fmt.Errorf("%w: frame size %dx%d", ErrMalformedDetection, frameW, frameH)
	}
	nose := det.Parts[detection.PartNose]
	if len(nose) <= NoseIndex {
		return RawFacing{}, RawMeasures{}, fmt.Errorf("%w: nose has %d points", ErrMalformedDetection, len(nose))
	}

	box := det.Box
	leftEye := detection.Centroid(det.Parts[detection.PartLeftEye])
	rightEye := detection.Centroid(det.Parts[detection.PartRightEye])
	mouth := detection.Centroid(det.Parts[detection.PartMouth])
	jawY := detection.ExtremeY(det.Parts[detection.PartJaw])

	m := RawMeasures{
		PitchRatio: (jawY - mouth.Y) / box.Height,
		YawRatio:   (leftEye.X + (rightEye.X-leftEye.X)/2 - nose[NoseIndex].X) / box.Width,
	}
	if !finite(m.PitchRatio) || !finite(m.YawRatio) {
		return RawFacing{}, m, fmt.Errorf("%w: non-finite ratios %+v", ErrMalformedDetection, m)
	}

	center := box.Center()
	return RawFacing{
		Yaw:      cal.Yaw.Apply(m.YawRatio),
		Pitch:    cal.Pitch.Apply(m.PitchRatio),
		PosX:     center.X / float64(frameW),
		PosY:     center.Y / float64(frameH),
		Validity: cal.Validity.Apply(m.PitchRatio),
	}, m, nil
}
