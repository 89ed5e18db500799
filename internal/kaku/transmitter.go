package kaku

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultRepeats is the number of times each frame is sent. Two or fewer
// is unreliable with most receivers.
const DefaultRepeats = 8

// ErrRepeats is returned for a repeat count outside 1-255.
var ErrRepeats = errors.New("kaku: repeats out of range (1-255)")

// PulseWriter plays frames on an output line.
type PulseWriter interface {
	// Write queues a frame for playback.
	Write(f Frame) error
	// Wait blocks until the queued frame has been played.
	Wait() error
}

// TransmitterConfig configures a Transmitter. Zero fields take defaults.
type TransmitterConfig struct {
	Period     time.Duration
	Resolution time.Duration
	Repeats    int
}

// Transmitter sends commands through a PulseWriter.
type Transmitter struct {
	mu      sync.Mutex
	enc     *Encoder
	out     PulseWriter
	repeats int
}

// NewTransmitter creates a Transmitter writing to out.
func NewTransmitter(out PulseWriter, cfg TransmitterConfig) (*Transmitter, error) {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Resolution == 0 {
		cfg.Resolution = DefaultResolution
	}
	if cfg.Repeats == 0 {
		cfg.Repeats = DefaultRepeats
	}
	if cfg.Repeats < 1 || cfg.Repeats > 255 {
		return nil, fmt.Errorf("%w: %d", ErrRepeats, cfg.Repeats)
	}

	enc, err := NewEncoder(cfg.Period, cfg.Resolution)
	if err != nil {
		return nil, err
	}

	return &Transmitter{
		enc:     enc,
		out:     out,
		repeats: cfg.Repeats,
	}, nil
}

// Encoder returns the frame builder used by the transmitter.
func (t *Transmitter) Encoder() *Encoder {
	return t.enc
}

// Repeats returns the number of times each frame is sent.
func (t *Transmitter) Repeats() int {
	return t.repeats
}

// SendGroup switches every unit of address on or off.
func (t *Transmitter) SendGroup(address uint32, on bool) error {
	f, err := t.enc.Group(address, on)
	if err != nil {
		return err
	}
	return t.send(f)
}

// SendUnit switches a single unit on or off.
func (t *Transmitter) SendUnit(address uint32, unit uint8, on bool) error {
	f, err := t.enc.Unit(address, unit, on)
	if err != nil {
		return err
	}
	return t.send(f)
}

// SendDim sets the dim level of a single unit.
func (t *Transmitter) SendDim(address uint32, unit, level uint8) error {
	f, err := t.enc.Dim(address, unit, level)
	if err != nil {
		return err
	}
	return t.send(f)
}

// Send transmits cmd using the layout Encode picks for it.
func (t *Transmitter) Send(cmd Command) error {
	f, err := t.enc.Encode(cmd)
	if err != nil {
		return err
	}
	return t.send(f)
}

// send plays f back to back Repeats times. It runs to completion.
func (t *Transmitter) send(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < t.repeats; i++ {
		if err := t.out.Write(f); err != nil {
			return fmt.Errorf("write frame %d/%d: %w", i+1, t.repeats, err)
		}
		if err := t.out.Wait(); err != nil {
			return fmt.Errorf("wait frame %d/%d: %w", i+1, t.repeats, err)
		}
	}
	return nil
}
