// Package rfserial talks to a 433MHz radio board attached over a serial
// port. The board timestamps pulses on its own clock and can play frames
// back, so it replaces direct GPIO access on hosts without spare pins.
//
// Every pulse travels as a 4 byte little endian record: bit 31 holds the
// level, bits 0-30 the duration (microseconds when received, transmitter
// ticks when sent).
//
// Board to host:
//
//	'E' record    one received pulse
//	0x06          frame played
//	0x15          frame rejected
//
// Host to board:
//
//	'P' count(uint16) record...
package rfserial

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

// DefaultBaud is the board's factory line speed.
const DefaultBaud = 115200

// DefaultAckTimeout bounds Wait while Consume owns the port. The longest
// frame lasts well under 100ms.
const DefaultAckTimeout = 2 * time.Second

const (
	msgEdge  = 'E'
	msgPlay  = 'P'
	msgAck   = 0x06
	msgNak   = 0x15
	levelBit = 1 << 31
	maxValue = levelBit - 1
)

var (
	// ErrRejected is returned by Wait when the board refused a frame.
	ErrRejected = errors.New("rfserial: frame rejected by board")
	// ErrAckTimeout is returned by Wait when no acknowledgement arrived.
	ErrAckTimeout = errors.New("rfserial: no acknowledgement from board")
	// ErrFrameTooLong is returned by Write for frames the header cannot count.
	ErrFrameTooLong = errors.New("rfserial: frame too long")
)

// EdgeHandler is called for every edge reported by the board.
type EdgeHandler func(ts time.Duration, rising bool)

// Link is a connection to a radio board.
type Link struct {
	// AckTimeout bounds Wait while Consume is running. Zero means
	// DefaultAckTimeout.
	AckTimeout time.Duration

	port io.ReadWriteCloser
	r    *bufio.Reader

	consuming atomic.Bool
	acks      chan error

	closeOnce sync.Once
	closeErr  error
}

// Open opens the named serial device at baud.
func Open(name string, baud int) (*Link, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", name, err)
	}
	return NewLink(port), nil
}

// NewLink wraps an already open port.
func NewLink(port io.ReadWriteCloser) *Link {
	return &Link{
		port: port,
		r:    bufio.NewReader(port),
		acks: make(chan error, 1),
	}
}

// Close closes the port, which also ends a running Consume. Later calls
// return the result of the first.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.port.Close()
	})
	return l.closeErr
}

// Consume reads pulses from the board and reports their edges to h until ctx
// is done or the port is closed. Edge timestamps start at zero with the
// first pulse. Acknowledgements seen meanwhile are handed to Wait.
func (l *Link) Consume(ctx context.Context, h EdgeHandler) error {
	l.consuming.Store(true)
	defer l.consuming.Store(false)

	var ts time.Duration
	first := true

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		typ, err := l.r.ReadByte()
		if err != nil {
			return readErr(err)
		}

		switch typ {
		case msgEdge:
			level, value, err := l.readRecord()
			if err != nil {
				return readErr(err)
			}
			if first {
				h(ts, level == 1)
				first = false
			}
			ts += time.Duration(value) * time.Microsecond
			h(ts, level == 0)
		case msgAck, msgNak:
			l.ack(typ)
		default:
			// Line noise or a partial message after reconnecting.
		}
	}
}

// Write sends f to the board for playback. Record values are frame ticks.
func (l *Link) Write(f kaku.Frame) error {
	n := 2 * len(f)
	if n > 0xffff {
		return fmt.Errorf("%w: %d pulses", ErrFrameTooLong, n)
	}

	// An acknowledgement that arrived after Wait gave up belongs to an
	// earlier frame.
	select {
	case <-l.acks:
	default:
	}

	buf := make([]byte, 3, 3+4*n)
	buf[0] = msgPlay
	binary.LittleEndian.PutUint16(buf[1:], uint16(n))
	for _, pair := range f {
		for _, p := range pair {
			buf = binary.LittleEndian.AppendUint32(buf, record(p.Level, p.Ticks))
		}
	}

	if _, err := l.port.Write(buf); err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}
	return nil
}

// Wait blocks until the board acknowledges the last written frame.
func (l *Link) Wait() error {
	if l.consuming.Load() {
		timeout := l.AckTimeout
		if timeout == 0 {
			timeout = DefaultAckTimeout
		}
		select {
		case err := <-l.acks:
			return err
		case <-time.After(timeout):
			return ErrAckTimeout
		}
	}

	// Nobody else is reading: skip pulses until the acknowledgement.
	for {
		typ, err := l.r.ReadByte()
		if err != nil {
			return fmt.Errorf("waiting for acknowledgement: %w", err)
		}
		switch typ {
		case msgAck:
			return nil
		case msgNak:
			return ErrRejected
		case msgEdge:
			if _, _, err := l.readRecord(); err != nil {
				return fmt.Errorf("waiting for acknowledgement: %w", err)
			}
		}
	}
}

func (l *Link) ack(typ byte) {
	var err error
	if typ == msgNak {
		err = ErrRejected
	}
	// Drop acknowledgements nobody is waiting for.
	select {
	case <-l.acks:
	default:
	}
	l.acks <- err
}

func (l *Link) readRecord() (int, uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(l.r, b[:]); err != nil {
		return 0, 0, err
	}
	v := binary.LittleEndian.Uint32(b[:])
	level := 0
	if v&levelBit != 0 {
		level = 1
	}
	return level, v & maxValue, nil
}

func record(level int, value uint32) uint32 {
	v := value & maxValue
	if level != 0 {
		v |= levelBit
	}
	return v
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("reading from serial port: %w", err)
}
