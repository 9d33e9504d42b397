package detection

import (
	"context"
	"sync"
	"time"
)

// MockOracle is a scriptable Oracle for tests and demos.
type MockOracle struct {
	mu     sync.Mutex
	result *Detection
	err    error
	delay  time.Duration
	status ModelStatus
	calls  int

	// DetectFunc, when set, replaces the scripted result.
	DetectFunc func(ctx context.Context, frame Frame) (*Detection, error)
}

// NewMockOracle creates a loaded mock oracle that finds no face.
func NewMockOracle() *MockOracle {
	return &MockOracle{status: ModelStatus{Loaded: true}}
}

// SetResult scripts the detection and error returned by Detect.
func (m *MockOracle) SetResult(det *Detection, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = det
	m.err = err
}

// SetDelay makes Detect block for d (or until ctx is done).
func (m *MockOracle) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetStatus scripts the model status.
func (m *MockOracle) SetStatus(s ModelStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

// Calls returns how many times Detect ran.
func (m *MockOracle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the scripted result.
func (m *MockOracle) Detect(ctx context.Context, frame Frame) (*Detection, error) {
	m.mu.Lock()
	m.calls++
	fn := m.DetectFunc
	det, err, delay := m.result, m.err, m.delay
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, frame)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if det == nil {
		return nil, err
	}
	out := *det
	out.Parts = det.CloneParts()
	return &out, err
}

// Status returns the scripted status.
func (m *MockOracle) Status() ModelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Close is a no-op.
func (m *MockOracle) Close() error { return nil }
