//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealEdgeSource is not available on non-Linux platforms.
type RealEdgeSource struct{}

// NewRealEdgeSource returns an error on non-Linux platforms.
func NewRealEdgeSource(chipName string, pin int, h EdgeHandler) (*RealEdgeSource, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Close() error {
	return nil
}

// RealPulseWriter is not available on non-Linux platforms.
type RealPulseWriter struct {
	*player
}

// NewRealPulseWriter returns an error on non-Linux platforms.
func NewRealPulseWriter(chipName string, pin int, resolution time.Duration) (*RealPulseWriter, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealPulseWriter) Close() error {
	return nil
}
