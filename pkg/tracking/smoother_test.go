package tracking

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/teslashibe/go-mirror/internal/timeutil"
)

func newTestSmoother() (*Smoother, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(t0)
	return NewSmoother(clock, PositionSpring(), OrientationSpring(), 10*time.Second), clock
}

// settle samples every render step for d.
func settle(s *Smoother, clock *timeutil.MockClock, d time.Duration) Signals {
	var out Signals
	for elapsed := time.Duration(0); elapsed < d; elapsed += renderStep {
		clock.Advance(renderStep)
		out = s.Sample()
	}
	return out
}

func TestSmootherStartsNeutral(t *testing.T) {
	s, _ := newTestSmoother()
	want := Signals(NeutralFacing())
	if diff := cmp.Diff(want, s.Sample()); diff != "" {
		t.Errorf("initial signals mismatch (-want +got):\n%s", diff)
	}
	for sig, p := range s.Phases() {
		if p != PhaseUninitialized {
			t.Errorf("%s phase = %v, want uninitialized", sig, p)
		}
	}
	if !s.Settled() {
		t.Error("fresh smoother should report settled")
	}
}

func TestSmootherConvergesToTargets(t *testing.T) {
	s, clock := newTestSmoother()
	raw := RawFacing{Yaw: 0.4, Pitch: -0.3, PosX: 0.2, PosY: 0.7, Validity: 0}
	if err := s.SetTargets(raw); err != nil {
		t.Fatal(err)
	}
	got := settle(s, clock, 3*time.Second)
	if diff := cmp.Diff(Signals(raw), got, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("signals after settle mismatch (-want +got):\n%s", diff)
	}
	if !s.Settled() {
		t.Errorf("phases = %v, want all settled", s.Phases())
	}
}

func TestSmootherOrientationIsSlower(t *testing.T) {
	s, clock := newTestSmoother()
	_ = s.SetTargets(RawFacing{Yaw: 1, Pitch: 0, PosX: 1, PosY: 0.5, Validity: 1})
	got := settle(s, clock, 160*time.Millisecond)
	yawProgress := got.Yaw / 1
	posProgress := (got.PosX - 0.5) / 0.5
	if yawProgress >= posProgress {
		t.Errorf("yaw progress %v should trail pos_x progress %v", yawProgress, posProgress)
	}
}

func TestSmootherSampleIsIdempotent(t *testing.T) {
	s, clock := newTestSmoother()
	_ = s.SetTargets(RawFacing{Yaw: 1, Pitch: 1, PosX: 0, PosY: 1, Validity: 0})
	clock.Advance(50 * time.Millisecond)

	a := s.Sample()
	b := s.Sample()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeated Sample differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(a, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot differs from Sample (-sample +snapshot):\n%s", diff)
	}
}

func TestSmootherSetTargetErrors(t *testing.T) {
	s, _ := newTestSmoother()
	if err := s.SetTarget("roll", 1); !errors.Is(err, ErrUnknownSignal) {
		t.Errorf("unknown signal error = %v", err)
	}
	if err := s.SetTarget(SignalPitch, math.NaN()); !errors.Is(err, ErrNonFiniteTarget) {
		t.Errorf("NaN target error = %v", err)
	}

	err := s.SetTargets(RawFacing{Yaw: math.Inf(1), Pitch: 0.5, PosX: 0.5, PosY: 0.5, Validity: 0})
	if !errors.Is(err, ErrNonFiniteTarget) {
		t.Errorf("SetTargets error = %v, want ErrNonFiniteTarget", err)
	}
	targets := s.Targets()
	if targets.Yaw != 0 {
		t.Errorf("yaw target = %v, want unchanged 0", targets.Yaw)
	}
	if targets.Pitch != 0.5 || targets.Validity != 0 {
		t.Errorf("finite targets not applied: %+v", targets)
	}
}

func TestSmootherConfigure(t *testing.T) {
	s, clock := newTestSmoother()
	_ = s.SetTarget(SignalPosX, 1)
	settle(s, clock, 50*time.Millisecond)
	before := s.Snapshot().PosX

	stiff := PositionSpring()
	stiff.Stiffness = 400
	stiff.Damping = CriticalDamping(400, 1)
	s.Configure(stiff, OrientationSpring())

	if got := s.Snapshot().PosX; got != before {
		t.Errorf("Configure moved value %v -> %v", before, got)
	}
	position, orientation := s.SpringConfigs()
	if position != stiff {
		t.Errorf("position config = %+v, want %+v", position, stiff)
	}
	if orientation != OrientationSpring() {
		t.Errorf("orientation config = %+v", orientation)
	}
}

func TestSignalsGet(t *testing.T) {
	s := Signals{Yaw: 1, Pitch: 2, PosX: 3, PosY: 4, Validity: 5}
	for i, sig := range AllSignals {
		v, ok := s.Get(sig)
		if !ok || v != float64(i+1) {
			t.Errorf("Get(%s) = %v, %v", sig, v, ok)
		}
	}
	if _, ok := s.Get("roll"); ok {
		t.Error("Get(roll) should fail")
	}
}
