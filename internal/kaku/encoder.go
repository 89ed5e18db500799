package kaku

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Transmit timing defaults.
const (
	// DefaultPeriod is the symbol period used by stock KAKU remotes.
	DefaultPeriod = 260 * time.Microsecond
	// DefaultResolution is one tick of an 80MHz clock divided by 100.
	DefaultResolution = 1250 * time.Nanosecond
)

// Frame sizes in pulse pairs: start, address, group, switch, unit, [dim,] stop.
const (
	FramePairs    = 1 + 2*AddressBits + 2 + 2 + 2*UnitBits + 1
	DimFramePairs = FramePairs + 2*DimBits
)

// ErrPeriod is returned for periods the receivers cannot synchronize on.
var ErrPeriod = errors.New("kaku: invalid symbol period")

// Pulse is one level held for a number of transmitter ticks.
type Pulse struct {
	Level int
	Ticks uint32
}

// Pair is a HIGH pulse followed by a LOW pulse.
type Pair [2]Pulse

// Frame is the complete pulse sequence of one transmission.
type Frame []Pair

// Durations converts the frame into alternating HIGH/LOW durations.
func (f Frame) Durations(resolution time.Duration) []time.Duration {
	out := make([]time.Duration, 0, 2*len(f))
	for _, p := range f {
		out = append(out, time.Duration(p[0].Ticks)*resolution, time.Duration(p[1].Ticks)*resolution)
	}
	return out
}

// EdgeTimes returns the edge timestamps of a signal that starts with an edge
// at start and then holds each of durations in turn.
func EdgeTimes(start time.Duration, durations []time.Duration) []time.Duration {
	out := make([]time.Duration, 0, len(durations)+1)
	t := start
	out = append(out, t)
	for _, d := range durations {
		t += d
		out = append(out, t)
	}
	return out
}

// Encoder builds frames for a fixed symbol period.
type Encoder struct {
	period     uint32 // ticks
	resolution time.Duration
}

// NewEncoder creates an encoder for the given symbol period, expressed on a
// clock whose ticks last resolution.
func NewEncoder(period, resolution time.Duration) (*Encoder, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("%w: resolution %v", ErrPeriod, resolution)
	}
	ticks := period / resolution
	if ticks == 0 || 40*ticks > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %v at resolution %v", ErrPeriod, period, resolution)
	}
	// The 40T stop must read as a sync pulse on the receiving side.
	if syncPeriods*ticks*resolution <= syncThreshold {
		return nil, fmt.Errorf("%w: %v is too short to synchronize on", ErrPeriod, ticks*resolution)
	}
	return &Encoder{period: uint32(ticks), resolution: resolution}, nil
}

// PeriodTicks returns the symbol period in clock ticks.
func (e *Encoder) PeriodTicks() uint32 {
	return e.period
}

// Resolution returns the duration of one clock tick.
func (e *Encoder) Resolution() time.Duration {
	return e.resolution
}

// Encode picks the frame layout for cmd: dim, group or unit.
func (e *Encoder) Encode(cmd Command) (Frame, error) {
	switch {
	case cmd.IsDim:
		return e.Dim(cmd.Address, cmd.Unit, cmd.DimLevel)
	case cmd.IsGroup:
		return e.Group(cmd.Address, cmd.IsOn)
	default:
		return e.Unit(cmd.Address, cmd.Unit, cmd.IsOn)
	}
}

// Group encodes an on/off command for every unit of address.
func (e *Encoder) Group(address uint32, on bool) (Frame, error) {
	if err := (Command{Address: address}).Validate(); err != nil {
		return nil, err
	}
	f := make(Frame, 0, FramePairs)
	f = e.header(f, address)
	f = e.bit(f, true)
	f = e.bit(f, on)
	f = e.nibble(f, 0)
	return e.stop(f), nil
}

// Unit encodes an on/off command for a single unit.
func (e *Encoder) Unit(address uint32, unit uint8, on bool) (Frame, error) {
	if err := (Command{Address: address, Unit: unit}).Validate(); err != nil {
		return nil, err
	}
	f := make(Frame, 0, FramePairs)
	f = e.header(f, address)
	f = e.bit(f, false)
	f = e.bit(f, on)
	f = e.nibble(f, unit)
	return e.stop(f), nil
}

// Dim encodes an absolute dim level for a single unit.
func (e *Encoder) Dim(address uint32, unit, level uint8) (Frame, error) {
	if err := (Command{Address: address, Unit: unit, IsDim: true, DimLevel: level}).Validate(); err != nil {
		return nil, err
	}
	f := make(Frame, 0, DimFramePairs)
	f = e.header(f, address)
	f = e.bit(f, false)
	f = e.dimMarker(f)
	f = e.nibble(f, unit)
	f = e.nibble(f, level)
	return e.stop(f), nil
}

// header appends the start bit (T high, 10.5T low) and the address.
func (e *Encoder) header(f Frame, address uint32) Frame {
	f = append(f, e.pair(e.period, 10*e.period+e.period>>1))
	for i := AddressBits - 1; i >= 0; i-- {
		f = e.bit(f, address>>uint(i)&1 == 1)
	}
	return f
}

func (e *Encoder) nibble(f Frame, v uint8) Frame {
	for i := 3; i >= 0; i-- {
		f = e.bit(f, v&(1<<uint(i)) != 0)
	}
	return f
}

func (e *Encoder) bit(f Frame, one bool) Frame {
	if one {
		return append(f, e.pair(e.period, 5*e.period), e.pair(e.period, e.period))
	}
	return append(f, e.pair(e.period, e.period), e.pair(e.period, 5*e.period))
}

func (e *Encoder) dimMarker(f Frame) Frame {
	return append(f, e.pair(e.period, e.period), e.pair(e.period, e.period))
}

// stop appends T high, 40T low.
func (e *Encoder) stop(f Frame) Frame {
	return append(f, e.pair(e.period, 40*e.period))
}

func (e *Encoder) pair(high, low uint32) Pair {
	return Pair{{Level: 1, Ticks: high}, {Level: 0, Ticks: low}}
}
