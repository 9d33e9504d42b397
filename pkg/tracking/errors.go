package tracking

import "errors"

var (
	// ErrDegenerateBand is returned for a calibration band with a zero-width
	// or non-finite input range. It is a configuration error.
	ErrDegenerateBand = errors.New("tracking: degenerate calibration band")

	// ErrMalformedDetection is returned by Estimate when a detection lacks
	// the parts or geometry the estimate needs.
	ErrMalformedDetection = errors.New("tracking: malformed detection")

	// ErrNonFiniteTarget is returned when a smoother target is NaN or Inf.
	ErrNonFiniteTarget = errors.New("tracking: non-finite target")

	// ErrUnknownSignal is returned for a signal name the smoother does not own.
	ErrUnknownSignal = errors.New("tracking: unknown signal")

	// ErrInvalidSpring is returned for spring parameters that cannot integrate.
	ErrInvalidSpring = errors.New("tracking: invalid spring config")
)
