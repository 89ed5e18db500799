package gpio

import (
	"sync"
	"time"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

// FakeEdgeSource is a test double that replays scripted edge timestamps.
type FakeEdgeSource struct {
	// Edges contains the scripted timestamps. The first edge is rising and
	// directions alternate from there.
	Edges []time.Duration

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeEdgeSource creates a FakeEdgeSource with the given timestamps.
func NewFakeEdgeSource(edges []time.Duration) *FakeEdgeSource {
	return &FakeEdgeSource{Edges: edges}
}

// Replay calls h for every scripted edge, in order, on the calling goroutine.
// A closed source delivers nothing.
func (f *FakeEdgeSource) Replay(h EdgeHandler) {
	if f.Closed {
		return
	}
	for i, ts := range f.Edges {
		h(ts, i%2 == 0)
	}
}

// Close marks the source as closed.
func (f *FakeEdgeSource) Close() error {
	f.Closed = true
	return nil
}

// FakePulseWriter is a test double that records written frames.
type FakePulseWriter struct {
	mu sync.Mutex

	// Frames contains every frame accepted by Write, in order.
	Frames []kaku.Frame
	Waits  int
	Closed bool

	// WriteError, if set, will be returned by Write()
	WriteError error
	// WaitError, if set, will be returned by Wait()
	WaitError error
}

// NewFakePulseWriter creates a FakePulseWriter.
func NewFakePulseWriter() *FakePulseWriter {
	return &FakePulseWriter{}
}

// Write records frame.
func (f *FakePulseWriter) Write(frame kaku.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Frames = append(f.Frames, frame)
	return nil
}

// Wait counts the call.
func (f *FakePulseWriter) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Waits++
	return f.WaitError
}

// Close marks the writer as closed.
func (f *FakePulseWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FrameCount returns the number of recorded frames.
func (f *FakePulseWriter) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Frames)
}

// Edges returns the edge timestamps the recorded frames would produce if
// played back to back from time zero at the given tick resolution.
func (f *FakePulseWriter) Edges(resolution time.Duration) []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	var durations []time.Duration
	for _, frame := range f.Frames {
		durations = append(durations, frame.Durations(resolution)...)
	}
	return kaku.EdgeTimes(0, durations)
}

// Reset clears all recorded state.
func (f *FakePulseWriter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames = nil
	f.Waits = 0
	f.Closed = false
}
