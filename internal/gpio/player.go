package gpio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

// ErrBusy is returned by Write while the previous frame is still playing.
var ErrBusy = errors.New("gpio: frame still playing")

// levelSetter drives an output line.
type levelSetter interface {
	SetValue(value int) error
}

// player plays frames on an output line in the background, one at a time.
// Pulse edges are placed on absolute deadlines from the start of the frame,
// so scheduling jitter on one pulse does not shift the rest.
type player struct {
	out        levelSetter
	resolution time.Duration
	now        func() time.Duration

	mu   sync.Mutex
	done chan error
}

func newPlayer(out levelSetter, resolution time.Duration) *player {
	start := time.Now()
	return &player{
		out:        out,
		resolution: resolution,
		now:        func() time.Duration { return time.Since(start) },
	}
}

// Write starts playing f and returns immediately.
func (p *player) Write(f kaku.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return ErrBusy
	}
	done := make(chan error, 1)
	p.done = done
	go func() {
		done <- p.play(f)
	}()
	return nil
}

// Wait blocks until the frame started by Write has been played.
func (p *player) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	err := <-done

	p.mu.Lock()
	p.done = nil
	p.mu.Unlock()
	return err
}

func (p *player) play(f kaku.Frame) error {
	// Keep the spinning goroutine on one thread for the whole frame.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	deadline := p.now()
	for i, pair := range f {
		for _, pulse := range pair {
			if err := p.out.SetValue(pulse.Level); err != nil {
				return fmt.Errorf("pair %d: %w", i, err)
			}
			deadline += time.Duration(pulse.Ticks) * p.resolution
			for p.now() < deadline {
			}
		}
	}

	// Idle low between frames.
	return p.out.SetValue(0)
}
