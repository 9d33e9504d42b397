package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.True(t, cfg.FallbackToDefault)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"negative device", func(c *Config) { c.DeviceID = -1 }, "deviceid"},
		{"tiny width", func(c *Config) { c.Width = 10 }, "width"},
		{"huge height", func(c *Config) { c.Height = 5000 }, "height"},
		{"zero fps", func(c *Config) { c.Framerate = 0 }, "framerate"},
		{"quality over 100", func(c *Config) { c.Quality = 101 }, "quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{Preset1080p, Preset720p, PresetDefault, PresetLow}, PresetNames())
	for name, cfg := range Presets() {
		assert.NoError(t, cfg.Validate(), name)
	}
	assert.Nil(t, GetPreset("missing"))
	require.NotNil(t, GetPreset(PresetLow))
	assert.Equal(t, 320, GetPreset(PresetLow).Width)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, StatusNoCamera, statusForError(ErrNoCamera))
	assert.Equal(t, StatusRejected, statusForError(ErrPermissionDenied))
	assert.Equal(t, StatusError, statusForError(assert.AnError))
	assert.True(t, StatusAccepted.Active())
	assert.False(t, StatusPending.Active())
}
