package camera

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

// readFailureLimit is how many consecutive empty reads are tolerated before
// the failure is logged.
const readFailureLimit = 30

// stopTimeout bounds how long Stop waits for the capture loop.
var stopTimeout = 2 * time.Second

// device is the part of gocv.VideoCapture the capture loop uses.
type device interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Capture reads a webcam on its own goroutine and keeps the latest frame
// JPEG-encoded. It implements Source.
type Capture struct {
	webcam   device
	deviceID int
	quality  int
	width    int
	height   int
	interval time.Duration

	mu       sync.RWMutex
	latest   detection.Frame
	hasFrame bool
	seq      uint64

	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// OpenCapture opens a webcam and applies the requested mode.
func OpenCapture(deviceID int, cfg Config) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrNoCamera, deviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrNoCamera, deviceID)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	// Get actual dimensions (camera may not support requested resolution)
	width := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	height := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	log.Info("camera opened",
		"device", deviceID,
		"requested", fmt.Sprintf("%dx%d@%d", cfg.Width, cfg.Height, cfg.Framerate),
		"actual", fmt.Sprintf("%dx%d", width, height))

	return &Capture{
		webcam:   webcam,
		deviceID: deviceID,
		quality:  cfg.Quality,
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(cfg.Framerate),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// OpenSource is the Opener for real webcams.
func OpenSource(deviceID int, cfg Config) (Source, error) {
	return OpenCapture(deviceID, cfg)
}

// Start begins the capture loop. onFrame, when set, runs on the capture
// goroutine for every encoded frame.
func (c *Capture) Start(onFrame func(detection.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	go c.run(onFrame)
}

// run owns the device once started and closes it on exit.
func (c *Capture) run(onFrame func(detection.Frame)) {
	defer close(c.done)
	defer func() {
		if err := c.webcam.Close(); err != nil {
			log.Warn("camera close", "device", c.deviceID, "error", err)
		}
		log.Info("camera closed", "device", c.deviceID)
	}()

	img := gocv.NewMat()
	defer img.Close()

	failures := 0
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if ok := c.webcam.Read(&img); !ok || img.Empty() {
			failures++
			if failures == readFailureLimit {
				log.Warn("camera returning empty frames", "device", c.deviceID, "consecutive", failures)
			}
			select {
			case <-c.stop:
				return
			case <-time.After(c.interval):
			}
			continue
		}
		failures = 0

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, c.quality})
		if err != nil {
			log.Debug("jpeg encode failed", "device", c.deviceID, "error", err)
			continue
		}
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		frame := c.store(data, img.Cols(), img.Rows())
		if onFrame != nil {
			onFrame(frame)
		}
	}
}

func (c *Capture) store(jpeg []byte, width, height int) detection.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.latest = detection.Frame{
		Seq:        c.seq,
		Width:      width,
		Height:     height,
		JPEG:       jpeg,
		CapturedAt: time.Now(),
	}
	c.hasFrame = true
	return c.latest
}

// Frame returns the most recent frame. ok is false until the first read.
func (c *Capture) Frame() (detection.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.hasFrame
}

// Size returns the negotiated frame size.
func (c *Capture) Size() (width, height int) {
	return c.width, c.height
}

// DeviceID returns the opened device index.
func (c *Capture) DeviceID() int {
	return c.deviceID
}

// Stop ends the capture loop and releases the device. It is safe to call
// more than once. If the loop is stuck in a read, Stop returns after
// stopTimeout and the loop releases the device when the read comes back.
func (c *Capture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		c.mu.Lock()
		started := c.started
		c.started = true
		c.mu.Unlock()

		close(c.stop)
		if !started {
			close(c.done)
			err = c.webcam.Close()
			log.Info("camera closed", "device", c.deviceID)
			return
		}
		select {
		case <-c.done:
		case <-time.After(stopTimeout):
			log.Warn("camera loop did not exit; device released when the read returns", "device", c.deviceID)
		}
	})
	return err
}
