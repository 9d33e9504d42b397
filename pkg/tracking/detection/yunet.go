package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/pkg/debug"
	"gocv.io/x/gocv"
)

// Config holds oracle model configuration
type Config struct {
	FaceModelPath     string  `json:"face_model_path"`     // YuNet ONNX face detector
	LandmarkModelPath string  `json:"landmark_model_path"` // 68-point landmark regressor (ONNX)
	ConfidenceThresh  float64 `json:"confidence_thresh"`   // Minimum face score
	NMSThresh         float64 `json:"nms_thresh"`          // Face NMS IoU threshold
	InputWidth        int     `json:"input_width"`         // Initial YuNet input width
	InputHeight       int     `json:"input_height"`        // Initial YuNet input height
	LandmarkInputSize int     `json:"landmark_input_size"` // Square landmark net input
	CropScale         float64 `json:"crop_scale"`          // Face box expansion before landmarking
}

// DefaultConfig returns production defaults for YuNet + a PFLD-style 68-point net
func DefaultConfig() Config {
	return Config{
		FaceModelPath:     "models/face_detection_yunet.onnx",
		LandmarkModelPath: "models/face_landmarks_68.onnx",
		ConfidenceThresh:  0.6,
		NMSThresh:         0.3,
		InputWidth:        320,
		InputHeight:       320,
		LandmarkInputSize: 112,
		CropScale:         1.2,
	}
}

// GoCVOracle finds the best face with OpenCV's FaceDetectorYN and regresses
// 68 landmarks on the face crop with an ONNX network run through gocv's DNN module.
type GoCVOracle struct {
	config Config

	mu        sync.Mutex // Protects inference
	detector  gocv.FaceDetectorYN
	landmarks gocv.Net

	statusMu sync.RWMutex
	status   ModelStatus
}

// NewGoCV creates an oracle whose models are not yet loaded. Call Load, usually
// from a goroutine, before Detect will return detections.
func NewGoCV(cfg Config) *GoCVOracle {
	return &GoCVOracle{config: cfg}
}

// Load reads both models from disk. On failure the oracle is marked failed and
// stays that way; Detect keeps returning ErrModelsNotLoaded.
func (o *GoCVOracle) Load() error {
	if err := o.load(); err != nil {
		o.setStatus(ModelStatus{Failed: true, Err: err.Error()})
		log.Error("failed to load face models", "error", err)
		return err
	}
	o.setStatus(ModelStatus{Loaded: true})
	log.Info("face models loaded",
		"face_model", o.config.FaceModelPath,
		"landmark_model", o.config.LandmarkModelPath)
	return nil
}

func (o *GoCVOracle) load() error {
	for _, path := range []string{o.config.FaceModelPath, o.config.LandmarkModelPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.detector = gocv.NewFaceDetectorYNWithParams(
		o.config.FaceModelPath,
		"", // No config file needed for ONNX
		image.Pt(o.config.InputWidth, o.config.InputHeight),
		float32(o.config.ConfidenceThresh),
		float32(o.config.NMSThresh),
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	net := gocv.ReadNetFromONNX(o.config.LandmarkModelPath)
	if net.Empty() {
		o.detector.Close()
		return fmt.Errorf("failed to load landmark model from %s", o.config.LandmarkModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	o.landmarks = net
	return nil
}

func (o *GoCVOracle) setStatus(s ModelStatus) {
	o.statusMu.Lock()
	o.status = s
	o.statusMu.Unlock()
}

// Status reports model readiness.
func (o *GoCVOracle) Status() ModelStatus {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

// Detect finds the best face in the frame and its 68 landmarks.
func (o *GoCVOracle) Detect(ctx context.Context, frame Frame) (*Detection, error) {
	if !o.Status().Ready() {
		return nil, ErrModelsNotLoaded
	}
	if len(frame.JPEG) == 0 {
		return nil, ErrEmptyFrame
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// The previous holder of the lock may have taken long enough for the
	// caller to give up.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	o.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	o.detector.Detect(img, &faces)

	cands := make([]Candidate, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial keypoints (unused here)
		// 14: face score
		cands = append(cands, Candidate{
			Box: Box{
				X:      float64(faces.GetFloatAt(r, 0)),
				Y:      float64(faces.GetFloatAt(r, 1)),
				Width:  float64(faces.GetFloatAt(r, 2)),
				Height: float64(faces.GetFloatAt(r, 3)),
			},
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}

	best := SelectBest(cands)
	if best == nil {
		return nil, nil
	}

	points, err := o.regress(img, best.Box)
	if err != nil {
		return nil, err
	}

	debug.TrackLog("face landmarks", "faces", len(cands), "score", best.Confidence)

	return &Detection{
		Box:   best.Box,
		Parts: SplitIBUG68(points),
		Score: best.Confidence,
	}, nil
}

// regress runs the landmark network on a square crop around the face box and
// maps the normalized outputs back to frame pixels.
func (o *GoCVOracle) regress(img gocv.Mat, box Box) ([]Point, error) {
	crop := cropRect(box, o.config.CropScale, img.Cols(), img.Rows())
	if crop.Empty() {
		return nil, ErrEmptyFrame
	}

	roi := img.Region(crop)
	defer roi.Close()

	size := o.config.LandmarkInputSize
	blob := gocv.BlobFromImage(roi, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	o.landmarks.SetInput(blob, "")
	out := o.landmarks.Forward("")
	defer out.Close()

	values, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read landmark output: %w", err)
	}
	if len(values) != NumLandmarks68*2 {
		return nil, fmt.Errorf("%w: %d values", ErrBadLandmarkOutput, len(values))
	}

	w, h := float64(crop.Dx()), float64(crop.Dy())
	points := make([]Point, NumLandmarks68)
	for i := range points {
		points[i] = Point{
			X: float64(crop.Min.X) + float64(values[2*i])*w,
			Y: float64(crop.Min.Y) + float64(values[2*i+1])*h,
		}
	}
	return points, nil
}

// cropRect expands the box to a square scaled by scale around its center and
// clips it to the image.
func cropRect(box Box, scale float64, imgW, imgH int) image.Rectangle {
	side := box.Width
	if box.Height > side {
		side = box.Height
	}
	side *= scale
	c := box.Center()
	r := image.Rect(
		int(c.X-side/2), int(c.Y-side/2),
		int(c.X+side/2), int(c.Y+side/2),
	)
	return r.Intersect(image.Rect(0, 0, imgW, imgH))
}

// Close releases the model resources
func (o *GoCVOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.Status().Loaded {
		return nil
	}
	o.detector.Close()
	err := o.landmarks.Close()
	o.setStatus(ModelStatus{})
	return err
}
