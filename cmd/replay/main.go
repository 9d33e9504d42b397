// Command replay runs a recorded detection stream through the tracker and
// writes the smoothed signals as JSON lines.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/internal/timeutil"
	"github.com/teslashibe/go-mirror/pkg/debug"
	"github.com/teslashibe/go-mirror/pkg/tracking"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

// sample is one output line.
type sample struct {
	T       float64          `json:"t"`
	Tick    uint64           `json:"tick"`
	HasFace bool             `json:"has_face"`
	Signals tracking.Signals `json:"signals"`
}

func main() {
	recording := flag.String("recording", "", "JSONL recording to replay (required)")
	out := flag.String("out", "-", "Output file, - for stdout")
	preset := flag.String("preset", "default", "Tracking preset: default, slow, responsive")
	tail := flag.Duration("tail", 2*time.Second, "Keep sampling this long after the last frame")
	verbose := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
		debug.Tracking = true
	}
	log.Init(level)

	if *recording == "" {
		fmt.Fprintln(os.Stderr, "replay: -recording is required")
		flag.Usage()
		os.Exit(2)
	}

	frames, err := detection.LoadRecordingFile(*recording)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	w := io.Writer(os.Stdout)
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	if err := replay(frames, presetConfig(*preset), *tail, bw); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
}

func presetConfig(name string) tracking.Config {
	switch name {
	case "slow":
		return tracking.SlowConfig()
	case "responsive":
		return tracking.ResponsiveConfig()
	default:
		return tracking.DefaultConfig()
	}
}

// replay drives the tracker on a simulated clock: one detection tick per
// recorded frame, and a signal sample every render interval.
func replay(frames []detection.RecordedFrame, cfg tracking.Config, tail time.Duration, w io.Writer) error {
	start := time.Unix(0, 0).UTC()
	clock := timeutil.NewMockClock(start)
	source := detection.NewReplay(frames, false)

	tracker, err := tracking.New(cfg, source, tracking.WithClock(clock))
	if err != nil {
		return err
	}
	tracker.SetFeed(source)

	enc := json.NewEncoder(w)
	ctx := context.Background()
	var elapsed, sinceTick time.Duration
	emit := func() error {
		return enc.Encode(sample{
			T:       elapsed.Seconds(),
			Tick:    tracker.Stats().LastApplied,
			HasFace: tracker.HasFace(),
			Signals: tracker.Signals(),
		})
	}

	tracker.Tick(ctx)
	tracker.Wait()
	for !source.Done() || sinceTick < tail {
		clock.Advance(cfg.RenderInterval)
		elapsed += cfg.RenderInterval
		sinceTick += cfg.RenderInterval
		if err := emit(); err != nil {
			return err
		}
		if sinceTick >= cfg.DetectionInterval && !source.Done() {
			tracker.Tick(ctx)
			tracker.Wait()
			sinceTick = 0
		}
	}

	stats := tracker.Stats()
	log.Info("replay finished",
		"frames", len(frames),
		"faces", stats.Faces,
		"misses", stats.Misses,
		"duration", elapsed)
	return nil
}
