package tracking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-mirror/internal/timeutil"
)

// Signal names one smoothed output channel.
type Signal string

const (
	SignalYaw      Signal = "yaw"
	SignalPitch    Signal = "pitch"
	SignalPosX     Signal = "pos_x"
	SignalPosY     Signal = "pos_y"
	SignalValidity Signal = "validity"
)

// AllSignals lists every channel in a stable order.
var AllSignals = []Signal{SignalYaw, SignalPitch, SignalPosX, SignalPosY, SignalValidity}

// Signals is a snapshot of every smoothed output.
type Signals struct {
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	PosX     float64 `json:"pos_x"`
	PosY     float64 `json:"pos_y"`
	Validity float64 `json:"validity"`
}

// Get returns the value for one signal.
func (s Signals) Get(sig Signal) (float64, bool) {
	switch sig {
	case SignalYaw:
		return s.Yaw, true
	case SignalPitch:
		return s.Pitch, true
	case SignalPosX:
		return s.PosX, true
	case SignalPosY:
		return s.PosY, true
	case SignalValidity:
		return s.Validity, true
	}
	return 0, false
}

// Smoother owns one spring per signal. Targets are written by the tracker;
// values are read by any number of consumers at their own cadence.
type Smoother struct {
	mu      sync.RWMutex
	clock   timeutil.Clock
	springs map[Signal]*Spring
}

// NewSmoother creates springs resting at the neutral facing.
func NewSmoother(clock timeutil.Clock, position, orientation SpringConfig, maxGap time.Duration) *Smoother {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	n := NeutralFacing()
	return &Smoother{
		clock: clock,
		springs: map[Signal]*Spring{
			SignalYaw:      NewSpring(orientation, n.Yaw, maxGap),
			SignalPitch:    NewSpring(orientation, n.Pitch, maxGap),
			SignalPosX:     NewSpring(position, n.PosX, maxGap),
			SignalPosY:     NewSpring(position, n.PosY, maxGap),
			SignalValidity: NewSpring(position, n.Validity, maxGap),
		},
	}
}

// SetTarget retargets a single signal.
func (s *Smoother) SetTarget(sig Signal, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.springs[sig]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, sig)
	}
	if err := sp.SetTarget(v, s.clock.Now()); err != nil {
		return fmt.Errorf("%s: %w", sig, err)
	}
	return nil
}

// SetTargets retargets all five signals from one raw estimate. Non-finite
// fields are skipped and reported; the rest still apply.
func (s *Smoother) SetTargets(raw RawFacing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var errs []error
	for _, sig := range AllSignals {
		v, _ := Signals(raw).Get(sig)
		if err := s.springs[sig].SetTarget(v, now); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sig, err))
		}
	}
	return errors.Join(errs...)
}

// Sample integrates every spring to the current time and returns the values.
// Two samples at the same instant return the same values.
func (s *Smoother) Sample() Signals {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, sp := range s.springs {
		sp.Advance(now)
	}
	return s.snapshot()
}

// Snapshot returns the values as of the last integration without advancing.
func (s *Smoother) Snapshot() Signals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Smoother) snapshot() Signals {
	return Signals{
		Yaw:      s.springs[SignalYaw].Value(),
		Pitch:    s.springs[SignalPitch].Value(),
		PosX:     s.springs[SignalPosX].Value(),
		PosY:     s.springs[SignalPosY].Value(),
		Validity: s.springs[SignalValidity].Value(),
	}
}

// Targets returns the current target of every signal.
func (s *Smoother) Targets() Signals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Signals{
		Yaw:      s.springs[SignalYaw].Target(),
		Pitch:    s.springs[SignalPitch].Target(),
		PosX:     s.springs[SignalPosX].Target(),
		PosY:     s.springs[SignalPosY].Target(),
		Validity: s.springs[SignalValidity].Target(),
	}
}

// Phases reports the lifecycle phase of every spring.
func (s *Smoother) Phases() map[Signal]Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Signal]Phase, len(s.springs))
	for sig, sp := range s.springs {
		out[sig] = sp.Phase()
	}
	return out
}

// Settled reports whether no spring is still moving.
func (s *Smoother) Settled() bool {
	for _, p := range s.Phases() {
		if p == PhaseSettling {
			return false
		}
	}
	return true
}

// Configure swaps spring parameters in place. Position and velocity carry over.
func (s *Smoother) Configure(position, orientation SpringConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for sig, sp := range s.springs {
		sp.Advance(now)
		if sig == SignalYaw || sig == SignalPitch {
			sp.SetConfig(orientation)
		} else {
			sp.SetConfig(position)
		}
	}
}

// SpringConfigs returns the position and orientation parameters in use.
func (s *Smoother) SpringConfigs() (position, orientation SpringConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.springs[SignalPosX].Config(), s.springs[SignalYaw].Config()
}
