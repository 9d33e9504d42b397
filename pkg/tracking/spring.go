package tracking

import (
	"fmt"
	"math"
	"time"
)

// criticalBand is how close the damping ratio must be to 1 to take the
// critically damped branch.
const criticalBand = 1e-6

// SpringConfig holds the physical parameters of one damped spring.
type SpringConfig struct {
	Stiffness float64 `json:"stiffness" validate:"gt=0"`
	Damping   float64 `json:"damping" validate:"gte=0"`
	Mass      float64 `json:"mass" validate:"gt=0"`

	// The spring snaps to its target once both displacement and speed fall
	// below these thresholds.
	RestDelta float64 `json:"rest_delta" validate:"gt=0"`
	RestSpeed float64 `json:"rest_speed" validate:"gt=0"`
}

// PositionSpring is the profile for screen position and validity.
func PositionSpring() SpringConfig {
	return SpringConfig{Stiffness: 100, Damping: 20, Mass: 1, RestDelta: 0.001, RestSpeed: 0.001}
}

// OrientationSpring is the heavier profile for yaw and pitch.
func OrientationSpring() SpringConfig {
	return SpringConfig{Stiffness: 100, Damping: 40, Mass: 4, RestDelta: 0.001, RestSpeed: 0.001}
}

// NaturalFrequency returns sqrt(k/m) in rad/s.
func (c SpringConfig) NaturalFrequency() float64 {
	return math.Sqrt(c.Stiffness / c.Mass)
}

// DampingRatio returns c / (2*sqrt(k*m)). 1 is critical.
func (c SpringConfig) DampingRatio() float64 {
	return c.Damping / (2 * math.Sqrt(c.Stiffness*c.Mass))
}

// CriticalDamping returns the damping coefficient that makes a spring of the
// given stiffness and mass critically damped.
func CriticalDamping(stiffness, mass float64) float64 {
	return 2 * math.Sqrt(stiffness*mass)
}

// Validate rejects parameters the integrator cannot handle.
func (c SpringConfig) Validate() error {
	for _, v := range []float64{c.Stiffness, c.Damping, c.Mass, c.RestDelta, c.RestSpeed} {
		if !finite(v) {
			return fmt.Errorf("%w: non-finite parameter in %+v", ErrInvalidSpring, c)
		}
	}
	switch {
	case c.Stiffness <= 0:
		return fmt.Errorf("%w: stiffness must be positive, got %v", ErrInvalidSpring, c.Stiffness)
	case c.Mass <= 0:
		return fmt.Errorf("%w: mass must be positive, got %v", ErrInvalidSpring, c.Mass)
	case c.Damping < 0:
		return fmt.Errorf("%w: damping must not be negative, got %v", ErrInvalidSpring, c.Damping)
	case c.RestDelta <= 0 || c.RestSpeed <= 0:
		return fmt.Errorf("%w: rest thresholds must be positive", ErrInvalidSpring)
	}
	return nil
}

// Phase is the lifecycle state of a Spring.
type Phase int

const (
	// PhaseUninitialized means no target has been set yet.
	PhaseUninitialized Phase = iota
	// PhaseSettling means the value is moving toward the target.
	PhaseSettling
	// PhaseSettled means the value equals the target and is at rest.
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseSettling:
		return "settling"
	case PhaseSettled:
		return "settled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText lets phases appear by name in JSON status payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Spring is a single damped-spring channel. It uses the closed-form solution
// of the damped oscillator over each elapsed interval, so arbitrarily long or
// irregular gaps between Advance calls stay stable.
//
// Spring is not safe for concurrent use; Smoother serializes access.
type Spring struct {
	cfg      SpringConfig
	maxGap   time.Duration
	value    float64
	velocity float64
	target   float64
	phase    Phase
	last     time.Time
}

// NewSpring creates a spring resting at initial. Intervals longer than maxGap
// settle immediately; zero disables that.
func NewSpring(cfg SpringConfig, initial float64, maxGap time.Duration) *Spring {
	return &Spring{
		cfg:    cfg,
		maxGap: maxGap,
		value:  initial,
		target: initial,
	}
}

// Value returns the current output without integrating.
func (s *Spring) Value() float64 { return s.value }

// Velocity returns the current rate of change per second.
func (s *Spring) Velocity() float64 { return s.velocity }

// Target returns the value the spring is settling toward.
func (s *Spring) Target() float64 { return s.target }

// Phase returns the lifecycle state.
func (s *Spring) Phase() Phase { return s.phase }

// Config returns the spring parameters.
func (s *Spring) Config() SpringConfig { return s.cfg }

// SetConfig swaps the parameters while keeping position and velocity.
func (s *Spring) SetConfig(cfg SpringConfig) { s.cfg = cfg }

// SetTarget integrates up to now under the old target, then retargets.
func (s *Spring) SetTarget(target float64, now time.Time) error {
	if !finite(target) {
		return fmt.Errorf("%w: %v", ErrNonFiniteTarget, target)
	}
	s.Advance(now)
	s.target = target
	if s.value == target && s.velocity == 0 {
		if s.phase == PhaseUninitialized {
			s.phase = PhaseSettled
		}
		return nil
	}
	s.phase = PhaseSettling
	return nil
}

// Advance integrates the spring forward to now. Calls with a time at or
// before the previous call are no-ops.
func (s *Spring) Advance(now time.Time) {
	if s.last.IsZero() {
		s.last = now
		return
	}
	dt := now.Sub(s.last)
	if dt <= 0 {
		return
	}
	s.last = now
	if s.phase != PhaseSettling {
		return
	}
	if s.maxGap > 0 && dt > s.maxGap {
		s.settle()
		return
	}

	s.step(dt.Seconds())

	if math.Abs(s.value-s.target) < s.cfg.RestDelta && math.Abs(s.velocity) < s.cfg.RestSpeed {
		s.settle()
	}
}

func (s *Spring) settle() {
	s.value = s.target
	s.velocity = 0
	s.phase = PhaseSettled
}

// step applies the analytic solution of m*x'' + c*x' + k*x = 0 over t seconds,
// where x is the displacement from target.
func (s *Spring) step(t float64) {
	w0 := s.cfg.NaturalFrequency()
	zeta := s.cfg.DampingRatio()
	x0 := s.value - s.target
	v0 := s.velocity

	var x, v float64
	switch {
	case math.Abs(zeta-1) < criticalBand:
		e := math.Exp(-w0 * t)
		b := v0 + w0*x0
		x = (x0 + b*t) * e
		v = (v0 - w0*b*t) * e

	case zeta < 1:
		alpha := zeta * w0
		wd := w0 * math.Sqrt(1-zeta*zeta)
		e := math.Exp(-alpha * t)
		a := x0
		b := (v0 + alpha*x0) / wd
		cos, sin := math.Cos(wd*t), math.Sin(wd*t)
		x = e * (a*cos + b*sin)
		v = e * ((b*wd-alpha*a)*cos - (a*wd+alpha*b)*sin)

	default:
		root := w0 * math.Sqrt(zeta*zeta-1)
		r1 := -zeta*w0 + root
		r2 := -zeta*w0 - root
		c2 := (v0 - r1*x0) / (r2 - r1)
		c1 := x0 - c2
		e1, e2 := math.Exp(r1*t), math.Exp(r2*t)
		x = c1*e1 + c2*e2
		v = r1*c1*e1 + r2*c2*e2
	}

	s.value = s.target + x
	s.velocity = v
}
