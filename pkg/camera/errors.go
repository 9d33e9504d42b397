package camera

import "errors"

var (
	// ErrNoCamera means no capture device could be opened.
	ErrNoCamera = errors.New("camera: no camera available")

	// ErrPermissionDenied means the device exists but access was refused.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrNotStarted is returned when stopping a camera that is not running.
	ErrNotStarted = errors.New("camera: not started")

	// ErrInvalidConfig wraps config validation failures.
	ErrInvalidConfig = errors.New("camera: invalid config")
)
