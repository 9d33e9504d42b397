package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/teslashibe/go-mirror/pkg/tracking"
)

// LoadTuning reads a tuning file in the /api/tuning body format. A missing
// file yields empty params and no error.
func LoadTuning(path string) (tracking.TuningParams, error) {
	var params tracking.TuningParams
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return params, nil
	}
	if err != nil {
		return params, fmt.Errorf("read tuning file: %w", err)
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := validate.Struct(params); err != nil {
		return params, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return params, nil
}

// SaveTuning writes params to path, replacing it atomically.
func SaveTuning(path string, params tracking.TuningParams) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tuning: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tuning-*.json")
	if err != nil {
		return fmt.Errorf("save tuning: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("save tuning: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save tuning: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save tuning: %w", err)
	}
	return nil
}
