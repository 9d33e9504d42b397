// Package camera provides webcam acquisition and runtime-configurable camera
// settings for the face tracker.
package camera

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	DeviceID int `json:"device_id" validate:"gte=0"`

	// Requested capture size and rate. The device may pick the nearest mode.
	Width     int `json:"width" validate:"gte=160,lte=3840"`
	Height    int `json:"height" validate:"gte=120,lte=2160"`
	Framerate int `json:"framerate" validate:"gte=1,lte=120"`

	// JPEG quality 1-100
	Quality int `json:"quality" validate:"gte=1,lte=100"`

	// FallbackToDefault retries device 0 when DeviceID cannot be opened.
	FallbackToDefault bool `json:"fallback_to_default"`
}

// DefaultConfig returns a webcam-friendly 640x480 configuration. Landmark
// regression runs on a face crop, so higher resolutions mostly cost CPU.
func DefaultConfig() Config {
	return Config{
		DeviceID:          0,
		Width:             640,
		Height:            480,
		Framerate:         30,
		Quality:           80,
		FallbackToDefault: true,
	}
}

var validate = validator.New()

// Validate checks if the config values are within valid ranges.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
