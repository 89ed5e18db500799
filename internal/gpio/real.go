//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealEdgeSource delivers receive-line edges from actual hardware using the
// Linux GPIO character device. The kernel timestamps each edge, so handler
// latency does not affect the measured pulse widths.
type RealEdgeSource struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealEdgeSource requests pin as an input watching both edges and calls h
// for every edge. h runs on a single goroutine owned by the line request.
func NewRealEdgeSource(chipName string, pin int, h EdgeHandler) (*RealEdgeSource, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// The receiver module drives the line, so no bias.
	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithBiasDisabled,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			h(evt.Timestamp, evt.Type == gpiocdev.LineEventRisingEdge)
		}))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request RX pin %d: %w", pin, err)
	}

	return &RealEdgeSource{
		chip: chip,
		line: line,
	}, nil
}

// Close stops edge delivery and releases GPIO resources.
func (s *RealEdgeSource) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close RX pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealPulseWriter plays frames on the transmit line of actual hardware.
type RealPulseWriter struct {
	*player
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealPulseWriter requests pin as an output driven low. Frame ticks last
// resolution each.
func NewRealPulseWriter(chipName string, pin int, resolution time.Duration) (*RealPulseWriter, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request TX pin %d: %w", pin, err)
	}

	return &RealPulseWriter{
		player: newPlayer(line, resolution),
		chip:   chip,
		line:   line,
	}, nil
}

// Close waits for any frame in flight, then releases GPIO resources.
// The line is reconfigured as an input with pull-down (matching Pi boot
// defaults) so the transmitter stays silent while nothing drives it.
func (w *RealPulseWriter) Close() error {
	var errs []error

	if err := w.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("finish frame: %w", err))
	}
	if w.line != nil {
		if err := w.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive TX pin low: %w", err))
		}
		if err := w.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure TX pin: %w", err))
		}
		if err := w.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close TX pin: %w", err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
