package camera

import "errors"

// Status is the camera access state shown to clients.
type Status string

const (
	StatusNotRequested Status = "notrequested"
	StatusPending      Status = "pending"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"
	StatusError        Status = "error"
	StatusNoCamera     Status = "nocamera"
)

// Active reports whether frames are flowing.
func (s Status) Active() bool {
	return s == StatusAccepted
}

// statusForError maps an open failure to the status clients see.
func statusForError(err error) Status {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return StatusRejected
	case errors.Is(err, ErrNoCamera):
		return StatusNoCamera
	default:
		return StatusError
	}
}
