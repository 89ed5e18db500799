// Package gpio connects 433MHz radio modules wired to GPIO lines.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// EdgeHandler is called for every edge on the receive line.
// ts is a monotonic timestamp; rising is true for a low-to-high transition.
type EdgeHandler func(ts time.Duration, rising bool)

// Line definitions (BCM numbering)
const (
	DefaultChip = "gpiochip0"
	PinRX       = 27 // receiver data out
	PinTX       = 17 // transmitter data in
)

// Consumer is the label shown for requested lines in gpioinfo.
const Consumer = "kaku-bridge"
