package tracking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/internal/timeutil"
	"github.com/teslashibe/go-mirror/pkg/debug"
	"github.com/teslashibe/go-mirror/pkg/tracking/detection"
)

// Feed supplies the most recent camera frame. ok is false while no frame has
// been captured yet.
type Feed interface {
	Frame() (frame detection.Frame, ok bool)
}

// Update is published to listeners after every applied tick.
type Update struct {
	Tick     uint64                               `json:"tick"`
	At       time.Time                            `json:"at"`
	HasFace  bool                                 `json:"has_face"`
	Raw      RawFacing                            `json:"raw"`
	Measures RawMeasures                          `json:"measures"`
	Parts    map[detection.Part][]detection.Point `json:"parts,omitempty"`
}

// Stats counts what the scheduler has done since start.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	Detections  uint64 `json:"detections"`
	Faces       uint64 `json:"faces"`
	Misses      uint64 `json:"misses"`
	Errors      uint64 `json:"errors"`
	Skipped     uint64 `json:"skipped"`
	Stale       uint64 `json:"stale"`
	InFlight    int    `json:"in_flight"`
	LastApplied uint64 `json:"last_applied"`
}

// Status is a point-in-time view of the tracker.
type Status struct {
	RunID      string                `json:"run_id"`
	Running    bool                  `json:"running"`
	FeedActive bool                  `json:"feed_active"`
	HasFace    bool                  `json:"has_face"`
	Models     detection.ModelStatus `json:"models"`
	Signals    Signals               `json:"signals"`
	Phases     map[Signal]Phase      `json:"phases"`
	Stats      Stats                 `json:"stats"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// Tracker schedules detections on a fixed cadence, turns results into smoother
// targets, and fans updates out to listeners. Detections run concurrently;
// results are applied in tick order and anything older than the last applied
// tick is dropped.
type Tracker struct {
	config   Config
	oracle   detection.Oracle
	clock    timeutil.Clock
	smoother *Smoother
	runID    string

	// State
	mu          sync.RWMutex
	feed        Feed
	feedGen     uint64
	lastApplied uint64
	hasFace     bool
	lastRaw     RawFacing
	lastMeasure RawMeasures
	lastParts   map[detection.Part][]detection.Point
	misses      int
	erroring    bool
	stats       Stats
	listeners   []func(Update)

	tickSeq  atomic.Uint64
	inFlight atomic.Int32
	running  atomic.Bool
	wg       sync.WaitGroup

	// Channel for runtime detection rate changes
	detectTickerReset chan time.Duration
}

// New creates a tracker around oracle. The config is validated here so a bad
// calibration band fails at startup rather than mid-stream.
func New(config Config, oracle detection.Oracle, opts ...Option) (*Tracker, error) {
	if oracle == nil {
		return nil, errors.New("tracking: nil oracle")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("tracking config: %w", err)
	}

	t := &Tracker{
		config:            config,
		oracle:            oracle,
		clock:             timeutil.RealClock{},
		runID:             uuid.NewString(),
		lastRaw:           NeutralFacing(),
		detectTickerReset: make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.smoother = NewSmoother(t.clock, config.PositionSpring, config.OrientationSpring, config.MaxGap)
	return t, nil
}

// Smoother returns the smoothed signal store.
func (t *Tracker) Smoother() *Smoother {
	return t.smoother
}

// Signals samples the smoother at the current time.
func (t *Tracker) Signals() Signals {
	return t.smoother.Sample()
}

// Config returns a copy of the active configuration.
func (t *Tracker) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}

// OnUpdate registers a listener for applied ticks. Listeners run on the
// goroutine that applied the result and must not block.
func (t *Tracker) OnUpdate(fn func(Update)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// SetFeed attaches a frame source. Results from detections started against a
// previous feed are dropped.
func (t *Tracker) SetFeed(feed Feed) {
	t.mu.Lock()
	t.feed = feed
	t.feedGen++
	gen := t.feedGen
	t.mu.Unlock()

	log.Info("tracking feed attached", "generation", gen)
}

// ClearFeed detaches the frame source and marks the signals untrusted.
func (t *Tracker) ClearFeed() {
	t.mu.Lock()
	t.feed = nil
	t.feedGen++
	t.hasFace = false
	t.lastParts = nil
	gen := t.feedGen
	t.mu.Unlock()

	if err := t.smoother.SetTarget(SignalValidity, 1); err != nil {
		log.Error("reset validity", "error", err)
	}
	log.Info("tracking feed cleared", "generation", gen)
}

// Run drives Tick on the detection cadence until ctx is done, then waits for
// in-flight detections to finish.
func (t *Tracker) Run(ctx context.Context) {
	t.mu.RLock()
	interval := t.config.DetectionInterval
	maxInFlight := t.config.MaxInFlight
	t.mu.RUnlock()

	ticker := t.clock.NewTicker(interval)
	defer ticker.Stop()

	t.running.Store(true)
	defer t.running.Store(false)

	log.Info("face tracker started",
		"run_id", t.runID,
		"interval", interval,
		"max_in_flight", maxInFlight)

	for {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			log.Info("face tracker stopped", "run_id", t.runID, "ticks", t.Stats().Ticks)
			return

		case d := <-t.detectTickerReset:
			ticker.Reset(d)
			log.Info("detection interval changed", "interval", d)

		case <-ticker.C():
			t.Tick(ctx)
		}
	}
}

// Tick runs one scheduling step. Without a frame or a ready oracle it marks
// the signals untrusted; otherwise it starts a detection unless too many are
// already running.
func (t *Tracker) Tick(ctx context.Context) {
	tick := t.tickSeq.Add(1)

	t.mu.Lock()
	t.stats.Ticks++
	feed := t.feed
	gen := t.feedGen
	maxInFlight := int32(t.config.MaxInFlight)
	t.mu.Unlock()

	if feed == nil {
		t.applyMiss(tick, gen, nil)
		return
	}
	frame, ok := feed.Frame()
	if !ok {
		t.applyMiss(tick, gen, nil)
		return
	}
	if !t.oracle.Status().Ready() {
		t.applyMiss(tick, gen, nil)
		return
	}

	for {
		n := t.inFlight.Load()
		if n >= maxInFlight {
			t.mu.Lock()
			t.stats.Skipped++
			t.mu.Unlock()
			debug.TrackLog("detection skipped", "tick", tick, "in_flight", n)
			return
		}
		if t.inFlight.CompareAndSwap(n, n+1) {
			break
		}
	}

	t.wg.Add(1)
	go t.detect(ctx, tick, gen, frame)
}

// Wait blocks until every in-flight detection has been applied or dropped.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) detect(ctx context.Context, tick, gen uint64, frame detection.Frame) {
	defer t.wg.Done()
	defer t.inFlight.Add(-1)

	det, err := t.oracle.Detect(ctx, frame)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		t.applyMiss(tick, gen, err)
		return
	}
	t.applyDetection(tick, gen, frame, det)
}

// accept claims tick as the newest applied result. Caller holds t.mu.
func (t *Tracker) accept(tick, gen uint64) bool {
	if gen != t.feedGen || tick <= t.lastApplied {
		t.stats.Stale++
		debug.TrackLog("stale result dropped", "tick", tick, "last_applied", t.lastApplied)
		return false
	}
	t.lastApplied = tick
	return true
}

func (t *Tracker) applyDetection(tick, gen uint64, frame detection.Frame, det *detection.Detection) {
	t.mu.Lock()
	if !t.accept(tick, gen) {
		t.mu.Unlock()
		return
	}
	t.stats.Detections++
	t.erroring = false

	if det == nil {
		update, listeners := t.recordMiss(tick, nil)
		t.mu.Unlock()
		notify(listeners, update)
		return
	}
	raw, measures, err := Estimate(det, frame.Width, frame.Height, t.config.Calibration)
	if err != nil {
		update, listeners := t.recordMiss(tick, err)
		t.mu.Unlock()
		notify(listeners, update)
		return
	}

	if !t.hasFace {
		log.Info("face acquired", "tick", tick)
	}
	t.hasFace = true
	t.misses = 0
	t.lastRaw = raw
	t.lastMeasure = measures
	t.lastParts = det.CloneParts()
	t.stats.Faces++
	if err := t.smoother.SetTargets(raw); err != nil {
		log.Warn("smoother rejected targets", "tick", tick, "error", err)
	}
	update := Update{
		Tick:     tick,
		At:       t.clock.Now(),
		HasFace:  true,
		Raw:      raw,
		Measures: measures,
		Parts:    det.CloneParts(),
	}
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	debug.TrackLog("face",
		"tick", tick,
		"pitch_ratio", measures.PitchRatio,
		"yaw_ratio", measures.YawRatio,
		"validity", raw.Validity)

	notify(listeners, update)
}

// applyMiss handles a tick with no usable detection: no feed, no frame,
// models not ready, or a failed detect call.
func (t *Tracker) applyMiss(tick, gen uint64, cause error) {
	t.mu.Lock()
	if !t.accept(tick, gen) {
		t.mu.Unlock()
		return
	}
	if cause != nil {
		t.stats.Detections++
	}
	update, listeners := t.recordMiss(tick, cause)
	t.mu.Unlock()
	notify(listeners, update)
}

// recordMiss marks the signals untrusted while holding the other targets.
// Caller holds t.mu and has already accepted tick.
func (t *Tracker) recordMiss(tick uint64, cause error) (Update, []func(Update)) {
	wasFace := t.hasFace
	t.hasFace = false
	t.lastParts = nil
	t.misses++
	t.stats.Misses++

	switch {
	case errors.Is(cause, ErrMalformedDetection):
		debug.TrackLog("malformed detection", "tick", tick, "error", cause)
	case cause != nil:
		t.stats.Errors++
		if !t.erroring {
			log.Warn("face detection failed", "tick", tick, "error", cause)
		}
		t.erroring = true
	}
	if wasFace {
		debug.TrackLog("face lost", "tick", tick)
	}
	if t.misses == t.config.MissLogThreshold {
		log.Info("no face for a while", "tick", tick, "misses", t.misses)
	}

	if err := t.smoother.SetTarget(SignalValidity, 1); err != nil {
		log.Error("reset validity", "error", err)
	}
	update := Update{
		Tick:     tick,
		At:       t.clock.Now(),
		HasFace:  false,
		Raw:      t.lastRaw,
		Measures: t.lastMeasure,
	}
	return update, slices.Clone(t.listeners)
}

func notify(listeners []func(Update), u Update) {
	for _, fn := range listeners {
		fn(u)
	}
}

// HasFace reports whether the last applied tick found a face.
func (t *Tracker) HasFace() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hasFace
}

// LastParts returns a copy of the most recent face parts, or nil.
func (t *Tracker) LastParts() map[detection.Part][]detection.Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastParts == nil {
		return nil
	}
	out := make(map[detection.Part][]detection.Point, len(t.lastParts))
	for k, v := range t.lastParts {
		out[k] = append([]detection.Point(nil), v...)
	}
	return out
}

// Stats returns a copy of the counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	s := t.stats
	s.LastApplied = t.lastApplied
	t.mu.RUnlock()
	s.InFlight = int(t.inFlight.Load())
	return s
}

// Status returns a full snapshot for status endpoints.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	feedActive := t.feed != nil
	hasFace := t.hasFace
	t.mu.RUnlock()

	return Status{
		RunID:      t.runID,
		Running:    t.running.Load(),
		FeedActive: feedActive,
		HasFace:    hasFace,
		Models:     t.oracle.Status(),
		Signals:    t.smoother.Sample(),
		Phases:     t.smoother.Phases(),
		Stats:      t.Stats(),
	}
}
