package tracking

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

const (
	testFrameW = 640
	testFrameH = 480
)

// syntheticFace builds a detection in a 200x200 box at (100, 100) whose
// pitch and yaw ratios are exactly the given values.
func syntheticFace(pitchRatio, yawRatio float64) *detection.Detection {
	const boxSize = 200.0
	mouthY := 250.0
	chinY := mouthY + pitchRatio*boxSize
	noseX := 200.0 - yawRatio*boxSize

	return &detection.Detection{
		Box: detection.Box{X: 100, Y: 100, Width: boxSize, Height: boxSize},
		Parts: map[detection.Part][]detection.Point{
			detection.PartJaw: {
				{X: 110, Y: 150}, {X: 150, Y: chinY - 10}, {X: 200, Y: chinY}, {X: 250, Y: chinY - 10}, {X: 290, Y: 150},
			},
			detection.PartLeftEye:  {{X: 140, Y: 180}, {X: 160, Y: 180}},
			detection.PartRightEye: {{X: 240, Y: 180}, {X: 260, Y: 180}},
			detection.PartNose: {
				{X: 200, Y: 170}, {X: 200, Y: 185}, {X: 200, Y: 200}, {X: noseX, Y: 215}, {X: 190, Y: 220},
			},
			detection.PartMouth: {{X: 170, Y: mouthY}, {X: 230, Y: mouthY}},
		},
	}
}

func TestEstimateFrontalFace(t *testing.T) {
	raw, m, err := Estimate(syntheticFace(0.225, 0), testFrameW, testFrameH, DefaultCalibration())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(m.PitchRatio-0.225) > 1e-9 {
		t.Errorf("PitchRatio = %v, want 0.225", m.PitchRatio)
	}
	if math.Abs(m.YawRatio) > 1e-9 {
		t.Errorf("YawRatio = %v, want 0", m.YawRatio)
	}
	if math.Abs(raw.Pitch) > 1e-9 {
		t.Errorf("Pitch = %v, want 0", raw.Pitch)
	}
	if math.Abs(raw.Yaw) > 1e-9 {
		t.Errorf("Yaw = %v, want 0", raw.Yaw)
	}
	if raw.Validity != 0 {
		t.Errorf("Validity = %v, want 0", raw.Validity)
	}
	if want := 200.0 / testFrameW; math.Abs(raw.PosX-want) > 1e-9 {
		t.Errorf("PosX = %v, want %v", raw.PosX, want)
	}
	if want := 200.0 / testFrameH; math.Abs(raw.PosY-want) > 1e-9 {
		t.Errorf("PosY = %v, want %v", raw.PosY, want)
	}
}

func TestEstimateClampsExtremes(t *testing.T) {
	raw, _, err := Estimate(syntheticFace(0.5, 0.2), testFrameW, testFrameH, DefaultCalibration())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if raw.Pitch != 1 {
		t.Errorf("Pitch = %v, want 1", raw.Pitch)
	}
	if raw.Validity != 1 {
		t.Errorf("Validity = %v, want 1", raw.Validity)
	}
	if raw.Yaw != -1 {
		t.Errorf("Yaw = %v, want -1", raw.Yaw)
	}
}

func TestEstimateUsesNoseTip(t *testing.T) {
	det := syntheticFace(0.225, 0)
	det.Parts[detection.PartNose][NoseIndex].X = 180 // 20px toward the viewer's left
	_, m, err := Estimate(det, testFrameW, testFrameH, DefaultCalibration())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(m.YawRatio-0.1) > 1e-9 {
		t.Errorf("YawRatio = %v, want 0.1", m.YawRatio)
	}
}

func TestEstimateMalformed(t *testing.T) {
	tests := []struct {
		name   string
		det    func() *detection.Detection
		width  int
		height int
	}{
		{"nil detection", func() *detection.Detection { return nil }, testFrameW, testFrameH},
		{"missing mouth", func() *detection.Detection {
			d := syntheticFace(0.2, 0)
			delete(d.Parts, detection.PartMouth)
			return d
		}, testFrameW, testFrameH},
		{"empty jaw", func() *detection.Detection {
			d := syntheticFace(0.2, 0)
			d.Parts[detection.PartJaw] = nil
			return d
		}, testFrameW, testFrameH},
		{"short nose", func() *detection.Detection {
			d := syntheticFace(0.2, 0)
			d.Parts[detection.PartNose] = d.Parts[detection.PartNose][:NoseIndex]
			return d
		}, testFrameW, testFrameH},
		{"zero box", func() *detection.Detection {
			d := syntheticFace(0.2, 0)
			d.Box.Height = 0
			return d
		}, testFrameW, testFrameH},
		{"nan landmark", func() *detection.Detection {
			d := syntheticFace(0.2, 0)
			d.Parts[detection.PartMouth][0].Y = math.NaN()
			return d
		}, testFrameW, testFrameH},
		{"zero frame", func() *detection.Detection { return syntheticFace(0.2, 0) }, 0, testFrameH},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Estimate(tt.det(), tt.width, tt.height, DefaultCalibration())
			if !errors.Is(err, ErrMalformedDetection) {
				t.Errorf("Estimate() error = %v, want ErrMalformedDetection", err)
			}
		})
	}
}

func TestNeutralFacing(t *testing.T) {
	n := NeutralFacing()
	if n.Yaw != 0 || n.Pitch != 0 || n.PosX != 0.5 || n.PosY != 0.5 || n.Validity != 1 {
		t.Errorf("NeutralFacing() = %+v", n)
	}
}
