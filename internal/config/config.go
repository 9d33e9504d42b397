// Package config loads the mirror service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/teslashibe/go-mirror/pkg/camera"
	"github.com/teslashibe/go-mirror/pkg/tracking"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

// Defaults for settings not present in the environment.
const (
	DefaultAddr     = ":8080"
	DefaultLogLevel = "info"
	DefaultPreset   = "default"
)

// Config is the service configuration.
type Config struct {
	Addr          string `validate:"required"`
	LogLevel      string `validate:"oneof=debug info warn warning error"`
	LogFile       string
	DebugTracking bool
	StaticDir     string

	// Tracking
	Preset     string `validate:"oneof=default slow responsive"`
	TuningFile string

	// Models
	FaceModel     string `validate:"required"`
	LandmarkModel string `validate:"required"`

	// Camera
	CameraDevice    int `validate:"gte=0"`
	CameraWidth     int `validate:"gte=160,lte=3840"`
	CameraHeight    int `validate:"gte=120,lte=2160"`
	CameraFPS       int `validate:"gte=1,lte=120"`
	CameraQuality   int `validate:"gte=1,lte=100"`
	CameraAutostart bool
}

var validate = validator.New()

// Load reads envFiles (missing files are skipped) and then the environment.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cam := camera.DefaultConfig()
	models := detection.DefaultConfig()

	var errs []error
	cfg := Config{
		Addr:          getEnv("MIRROR_ADDR", DefaultAddr),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", DefaultLogLevel)),
		LogFile:       os.Getenv("LOG_FILE"),
		DebugTracking: getEnvBool("DEBUG_TRACKING", false, &errs),
		StaticDir:     os.Getenv("STATIC_DIR"),

		Preset:     strings.ToLower(getEnv("TRACKING_PRESET", DefaultPreset)),
		TuningFile: os.Getenv("TUNING_FILE"),

		FaceModel:     getEnv("FACE_MODEL", models.FaceModelPath),
		LandmarkModel: getEnv("LANDMARK_MODEL", models.LandmarkModelPath),

		CameraDevice:    getEnvInt("CAMERA_DEVICE", cam.DeviceID, &errs),
		CameraWidth:     getEnvInt("CAMERA_WIDTH", cam.Width, &errs),
		CameraHeight:    getEnvInt("CAMERA_HEIGHT", cam.Height, &errs),
		CameraFPS:       getEnvInt("CAMERA_FPS", cam.Framerate, &errs),
		CameraQuality:   getEnvInt("CAMERA_QUALITY", cam.Quality, &errs),
		CameraAutostart: getEnvBool("CAMERA_AUTOSTART", true, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s %s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Tracking returns the tracking preset named by Preset.
func (c Config) Tracking() tracking.Config {
	switch c.Preset {
	case "slow":
		return tracking.SlowConfig()
	case "responsive":
		return tracking.ResponsiveConfig()
	default:
		return tracking.DefaultConfig()
	}
}

// Camera returns the camera settings.
func (c Config) Camera() camera.Config {
	cfg := camera.DefaultConfig()
	cfg.DeviceID = c.CameraDevice
	cfg.Width = c.CameraWidth
	cfg.Height = c.CameraHeight
	cfg.Framerate = c.CameraFPS
	cfg.Quality = c.CameraQuality
	return cfg
}

// Detection returns the oracle model settings.
func (c Config) Detection() detection.Config {
	cfg := detection.DefaultConfig()
	cfg.FaceModelPath = c.FaceModel
	cfg.LandmarkModelPath = c.LandmarkModel
	return cfg
}

// getEnv returns the env var or def when unset.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func getEnvBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}
