package kaku

import "time"

// Decoder states. Each logical bit spans four states (two pulse pairs), so
// these boundaries are part of the frame layout and must not move.
const (
	stateUnsynced  = -1
	stateStartHigh = 0
	stateStartLow  = 1
	stateGroup     = 106 // states 2-105 carry the address
	stateSwitch    = 110
	stateUnit      = 114
	stateDim       = 130
	stateDimEnd    = 146
	stateStop      = 131 // stop LOW after the unit bits
	stateDimStop   = 147 // stop LOW after the dim bits
)

// Valid nibbles of receivedBit, one bit per pulse: 0 short, 1 long.
const (
	nibbleZero = 0b0001
	nibbleOne  = 0b0100
	nibbleDim  = 0b0000
)

const (
	// syncThreshold is 40 periods at the shortest supported period (120µs).
	syncThreshold = 4800 * time.Microsecond
	syncPeriods   = 40
)

// Windows holds the tolerance bands calibrated from the last sync pulse.
type Windows struct {
	Period time.Duration
	Min1   time.Duration
	Max1   time.Duration
	Min5   time.Duration
	Max5   time.Duration
}

// Decoder reconstructs commands from the edges of one input line.
// It is not safe for concurrent use: a single goroutine must feed it.
type Decoder struct {
	state        int
	edges        [3]time.Duration
	win          Windows
	receivedBit  uint8
	skipNextEdge bool

	current Command
	last    Command
}

// NewDecoder creates an unsynchronized decoder.
func NewDecoder() *Decoder {
	return &Decoder{state: stateUnsynced}
}

// windows returns the current calibration.
func (d *Decoder) windows() Windows {
	return d.win
}

// synced reports whether the decoder is inside a frame.
func (d *Decoder) synced() bool {
	return d.state != stateUnsynced
}

// Edge processes one edge (rising or falling) seen at ts.
// It returns the finished command when the edge completed a frame.
//
// The decoder runs one edge behind: the duration examined is the pulse that
// ended at the previous edge, so a full pulse pair is known at each step.
func (d *Decoder) Edge(ts time.Duration) (Command, bool) {
	d.edges[1] = d.edges[2]
	d.edges[2] = ts

	if d.skipNextEdge {
		d.skipNextEdge = false
		return Command{}, false
	}

	// Too short: drop this edge and the next one, which merges the spike
	// back into the surrounding pulse.
	if d.state >= 0 && d.edges[2]-d.edges[1] < d.win.Min1 {
		d.skipNextEdge = true
		return Command{}, false
	}

	duration := d.edges[1] - d.edges[0]
	d.edges[0] = d.edges[1]

	switch {
	case d.state == stateUnsynced:
		// Wait for the 40T low part of a stop bit.
		if duration <= syncThreshold {
			return Command{}, false
		}
		d.calibrate(duration)

	case d.state == stateStartHigh:
		if duration > d.win.Max1 {
			d.state = stateUnsynced
			return Command{}, false
		}
		d.current.Address = 0
		d.current.Unit = 0
		d.current.DimLevel = 0
		d.current.IsDim = false
		d.current.IsOn = false
		d.current.IsGroup = false

	case d.state == stateStartLow:
		// ~10.5T
		if duration < 7*d.win.Period || duration > 15*d.win.Period {
			d.state = stateUnsynced
			return Command{}, false
		}

	case d.state > stateDimStop:
		d.state = stateUnsynced
		return Command{}, false

	default:
		d.receivedBit <<= 1
		switch {
		case duration <= d.win.Max1:
		case duration >= d.win.Min5 && duration <= d.win.Max5:
			d.receivedBit |= 1
		case d.isStop(duration):
			return d.complete(), true
		default:
			d.state = stateUnsynced
			return Command{}, false
		}

		// Last pulse of a logical bit.
		if d.state%4 == 1 && !d.decodeBit() {
			d.state = stateUnsynced
			return Command{}, false
		}
	}

	d.state++
	return Command{}, false
}

func (d *Decoder) calibrate(sync time.Duration) {
	d.current.Repeat = 0

	period := sync / syncPeriods
	d.current.Period = period

	// Wide margins: cheap receivers let high pulses linger into the lows.
	d.win = Windows{
		Period: period,
		Min1:   period * 3 / 10,
		Max1:   period * 3,
		Min5:   period * 3,
		Max5:   period * 8,
	}
}

// isStop matches the ~40T low of the stop bit. The pulse before it must have
// been short, and only two positions in the frame may end it.
func (d *Decoder) isStop(duration time.Duration) bool {
	return duration >= 20*d.win.Period && duration <= 80*d.win.Period &&
		d.receivedBit&0b10 == 0 &&
		(d.state == stateStop || d.state == stateDimStop)
}

func (d *Decoder) complete() Command {
	if d.state == stateDimStop {
		d.current.IsDim = true
	}

	if !d.current.Same(d.last) {
		d.current.Repeat = 0
		d.last = d.current
	}

	out := d.current
	d.current.Repeat++

	// The stop pulse doubles as the lead of the next start bit.
	d.state = stateStartHigh
	return out
}

// decodeBit folds the completed nibble into the field owned by the current
// state. It returns false for a nibble that is invalid at this position.
func (d *Decoder) decodeBit() bool {
	nibble := d.receivedBit & 0b1111

	if nibble == nibbleDim {
		if d.state < stateSwitch || d.state >= stateUnit {
			return false
		}
		d.current.IsDim = true
		return true
	}

	var bit uint8
	switch nibble {
	case nibbleZero:
	case nibbleOne:
		bit = 1
	default:
		return false
	}

	switch {
	case d.state < stateGroup:
		d.current.Address = d.current.Address<<1 | uint32(bit)
	case d.state < stateSwitch:
		d.current.IsGroup = bit == 1
	case d.state < stateUnit:
		// May still turn out to be on-with-dim.
		d.current.IsOn = bit == 1
	case d.state < stateDim:
		d.current.Unit = d.current.Unit<<1 | bit
	case d.state < stateDimEnd:
		// Some remotes send a level even for plain on/off.
		d.current.IsDim = true
		d.current.DimLevel = d.current.DimLevel<<1 | bit
	}
	return true
}
