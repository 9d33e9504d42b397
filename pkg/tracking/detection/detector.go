// Package detection provides the facial landmark oracle and the geometry used
// to reduce landmark point groups to scalar summaries.
package detection

import (
	"context"
	"time"
)

// Point is a landmark coordinate in video pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned face bounding box in video pixel space.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns the area of the box
func (b Box) Area() float64 {
	return b.Width * b.Height
}

// Part names an anatomical landmark group.
type Part string

const (
	PartJaw      Part = "jaw"
	PartLeftEye  Part = "leftEye"
	PartRightEye Part = "rightEye"
	PartNose     Part = "nose"
	PartMouth    Part = "mouth"
)

// AllParts lists every part a complete detection carries, in draw order.
var AllParts = []Part{PartJaw, PartLeftEye, PartRightEye, PartNose, PartMouth}

// Detection is a single detected face with its landmark groups.
type Detection struct {
	Box   Box              `json:"box"`
	Parts map[Part][]Point `json:"parts"`
	Score float64          `json:"score,omitempty"`
}

// Complete reports whether the box has a positive size and every part is
// present with at least one point.
func (d *Detection) Complete() bool {
	if d == nil || d.Box.Width <= 0 || d.Box.Height <= 0 {
		return false
	}
	for _, p := range AllParts {
		if len(d.Parts[p]) == 0 {
			return false
		}
	}
	return true
}

// CloneParts returns a deep copy of the landmark groups.
func (d *Detection) CloneParts() map[Part][]Point {
	if d == nil {
		return nil
	}
	out := make(map[Part][]Point, len(d.Parts))
	for k, pts := range d.Parts {
		out[k] = append([]Point(nil), pts...)
	}
	return out
}

// Frame is one decodable video frame.
type Frame struct {
	Seq        uint64
	Width      int
	Height     int
	JPEG       []byte
	CapturedAt time.Time
}

// ModelStatus reports the oracle's model readiness.
type ModelStatus struct {
	Loaded bool   `json:"models_loaded"`
	Failed bool   `json:"models_failed"`
	Err    string `json:"models_error,omitempty"`
}

// Ready returns true if detection can run.
func (s ModelStatus) Ready() bool {
	return s.Loaded && !s.Failed
}

// Oracle is the interface for landmark detection backends.
type Oracle interface {
	// Detect finds at most one face in the frame. A nil detection with a nil
	// error means no face was found.
	Detect(ctx context.Context, frame Frame) (*Detection, error)

	// Status reports whether the models are loaded or failed to load
	Status() ModelStatus

	// Close releases resources
	Close() error
}

// Candidate is a face box scored by the face detector, before landmarking.
type Candidate struct {
	Box        Box
	Confidence float64
}

// SelectBest picks the best face from multiple candidates
// Priority: confidence * 0.7 + relative area * 0.3
func SelectBest(cands []Candidate) *Candidate {
	if len(cands) == 0 {
		return nil
	}

	if len(cands) == 1 {
		return &cands[0]
	}

	// Find max area for normalization
	maxArea := 0.0
	for _, c := range cands {
		if c.Box.Area() > maxArea {
			maxArea = c.Box.Area()
		}
	}
	if maxArea <= 0 {
		maxArea = 1
	}

	bestScore := -1.0
	var best *Candidate

	for i := range cands {
		score := cands[i].Confidence*0.7 + (cands[i].Box.Area()/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &cands[i]
		}
	}

	return best
}
