package detection

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// RecordedFrame is one line of a landmark recording. Face is nil for frames
// where no face was found.
type RecordedFrame struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Face   *Detection `json:"face"`
}

// LoadRecording reads a JSON-lines landmark recording. Blank lines are skipped.
func LoadRecording(r io.Reader) ([]RecordedFrame, error) {
	var frames []RecordedFrame

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var f RecordedFrame
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("recording line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return frames, nil
}

// LoadRecordingFile opens and reads a recording from disk.
func LoadRecordingFile(path string) ([]RecordedFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRecording(f)
}

// Replay plays back a recording. It is both the frame source and the oracle:
// Frame hands out the next recorded frame and Detect returns the detection
// recorded for that frame's sequence number.
type Replay struct {
	mu     sync.Mutex
	frames []RecordedFrame
	cursor int
	loop   bool
}

// NewReplay creates a replay over frames. With loop set, playback wraps around
// instead of ending.
func NewReplay(frames []RecordedFrame, loop bool) *Replay {
	return &Replay{frames: frames, loop: loop}
}

// Frame returns the next recorded frame, or false once playback has ended.
func (r *Replay) Frame() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return Frame{}, false
	}
	if r.cursor >= len(r.frames) {
		if !r.loop {
			return Frame{}, false
		}
		r.cursor = 0
	}

	rec := r.frames[r.cursor]
	f := Frame{
		Seq:        uint64(r.cursor),
		Width:      rec.Width,
		Height:     rec.Height,
		CapturedAt: time.Now(),
	}
	r.cursor++
	return f, true
}

// Done reports whether a non-looping replay has handed out every frame.
func (r *Replay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.loop && r.cursor >= len(r.frames)
}

// Detect returns the recorded face for frame.Seq.
func (r *Replay) Detect(ctx context.Context, frame Frame) (*Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if frame.Seq >= uint64(len(r.frames)) {
		return nil, nil
	}
	face := r.frames[frame.Seq].Face
	if face == nil {
		return nil, nil
	}
	out := *face
	out.Parts = face.CloneParts()
	return &out, nil
}

// Status reports a replay as always loaded.
func (r *Replay) Status() ModelStatus {
	return ModelStatus{Loaded: true}
}

// Close is a no-op.
func (r *Replay) Close() error { return nil }
