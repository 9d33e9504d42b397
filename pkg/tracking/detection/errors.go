package detection

import "errors"

var (
	// ErrModelsNotLoaded is returned by Detect before the models finished loading.
	ErrModelsNotLoaded = errors.New("detection: models not loaded")

	// ErrModelNotFound is returned when a model file does not exist.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrBadLandmarkOutput is returned when the landmark network produced an
	// unexpected number of values.
	ErrBadLandmarkOutput = errors.New("detection: unexpected landmark output")

	// ErrEmptyFrame is returned for frames with no decodable image.
	ErrEmptyFrame = errors.New("detection: empty frame")
)
