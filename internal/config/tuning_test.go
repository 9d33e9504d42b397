package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mirror/pkg/tracking"
)

func TestLoadTuningMissing(t *testing.T) {
	params, err := LoadTuning(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, tracking.TuningParams{}, params)

	params, err = LoadTuning("")
	require.NoError(t, err)
	assert.Nil(t, params.PitchBand)
}

func TestSaveAndLoadTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	band := tracking.Band{InMin: 0.12, InMax: 0.32, OutMin: -1, OutMax: 1}
	spring := tracking.OrientationSpring()
	want := tracking.TuningParams{PitchBand: &band, OrientationSpring: &spring, DetectionHz: 15}

	require.NoError(t, SaveTuning(path, want))
	got, err := LoadTuning(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoadTuningInvalid(t *testing.T) {
	dir := t.TempDir()

	garbled := filepath.Join(dir, "garbled.json")
	require.NoError(t, os.WriteFile(garbled, []byte("{pitch"), 0o644))
	_, err := LoadTuning(garbled)
	assert.ErrorContains(t, err, "parse tuning file")

	negative := filepath.Join(dir, "negative.json")
	require.NoError(t, os.WriteFile(negative, []byte(`{"position_spring": {"stiffness": -5, "damping": 1, "mass": 1, "rest_delta": 0.001, "rest_speed": 0.001}}`), 0o644))
	_, err = LoadTuning(negative)
	assert.ErrorContains(t, err, "Stiffness")
}
