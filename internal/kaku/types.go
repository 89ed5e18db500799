// Package kaku implements the pulse-timing protocol of KAKU (KlikAanKlikUit)
// 433MHz remote switches: a self-calibrating decoder that turns edge
// timestamps into commands, and an encoder that turns commands into pulses.
//
// This package has NO hardware dependencies (no GPIO, MQTT or sleeping).
// Edge timestamps are always passed in by the caller.
package kaku

import (
	"errors"
	"fmt"
	"time"
)

// Field widths of a KAKU frame.
const (
	AddressBits = 26
	UnitBits    = 4
	DimBits     = 4

	MaxAddress  = 1<<AddressBits - 1
	MaxUnit     = 1<<UnitBits - 1
	MaxDimLevel = 1<<DimBits - 1
)

// Switch states as reported by Command.State.
const (
	StateOn  = "ON"
	StateOff = "OFF"
	StateDim = "DIM"
)

// Validation errors returned at the encoder input boundary.
var (
	ErrAddressRange  = errors.New("kaku: address out of range (0-67108863)")
	ErrUnitRange     = errors.New("kaku: unit out of range (0-15)")
	ErrDimLevelRange = errors.New("kaku: dim level out of range (0-15)")
)

// Command is a single KAKU switch command, either decoded from the air or
// about to be encoded.
type Command struct {
	// Address identifies the transmitting remote (26 bits).
	Address uint32
	// Unit is the target device within Address (4 bits). 0 for group commands.
	Unit uint8
	// IsGroup addresses every unit under Address.
	IsGroup bool
	// IsOn is the requested power state. Undefined for dim-only signals.
	IsOn bool
	// IsDim is set when a dim level payload is present.
	IsDim bool
	// DimLevel is the requested level (4 bits), meaningful only when IsDim.
	DimLevel uint8

	// Period is the symbol period calibrated from the sync pulse.
	// Decoder output only.
	Period time.Duration
	// Repeat counts consecutive identical receptions, starting at 0.
	// Decoder output only.
	Repeat int
}

// Same reports whether c and o carry the same signal. Period, Repeat and
// IsOn do not take part in the comparison.
func (c Command) Same(o Command) bool {
	return c.Address == o.Address &&
		c.Unit == o.Unit &&
		c.IsGroup == o.IsGroup &&
		c.IsDim == o.IsDim &&
		c.DimLevel == o.DimLevel
}

// Validate checks that every field fits its width in the frame.
func (c Command) Validate() error {
	if c.Address > MaxAddress {
		return fmt.Errorf("%w: %d", ErrAddressRange, c.Address)
	}
	if c.Unit > MaxUnit {
		return fmt.Errorf("%w: %d", ErrUnitRange, c.Unit)
	}
	if c.IsDim && c.DimLevel > MaxDimLevel {
		return fmt.Errorf("%w: %d", ErrDimLevelRange, c.DimLevel)
	}
	return nil
}

// State names the switch state. A dim marker in the switch position reads
// as DIM; a plain on followed by a dim level stays ON.
func (c Command) State() string {
	switch {
	case c.IsDim && !c.IsOn:
		return StateDim
	case c.IsOn:
		return StateOn
	default:
		return StateOff
	}
}

func (c Command) String() string {
	return fmt.Sprintf("address=%d unit=%d group=%t on=%t dim=%t level=%d repeat=%d period=%v",
		c.Address, c.Unit, c.IsGroup, c.IsOn, c.IsDim, c.DimLevel, c.Repeat, c.Period)
}
