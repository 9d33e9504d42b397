// Package debug provides global verbose-logging switches
package debug

import "github.com/teslashibe/go-mirror/internal/log"

// Tracking controls whether per-frame tracking logs are emitted (detections,
// raw ratios, stale results). Enable with the -debug-tracking flag.
var Tracking bool

// TrackLog logs a message only if tracking debug mode is enabled
func TrackLog(msg string, args ...any) {
	if Tracking {
		log.Info(msg, args...)
	}
}
