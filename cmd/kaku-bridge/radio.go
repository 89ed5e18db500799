package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/kaku-bridge/internal/gpio"
	"github.com/sweeney/kaku-bridge/internal/kaku"
	"github.com/sweeney/kaku-bridge/internal/rfserial"
)

// radio is the receive and transmit hardware, either GPIO lines or a serial
// board.
type radio struct {
	name string
	out  kaku.PulseWriter

	listen func(ctx context.Context, h func(ts time.Duration, rising bool)) error
	close  func() error
}

// openRadio opens the hardware selected by the persistent flags. The
// transmit side is only claimed when tx is set.
func openRadio(tx bool) (*radio, error) {
	if serialDevice != "" {
		return openSerialRadio()
	}
	return openGPIORadio(tx)
}

func openSerialRadio() (*radio, error) {
	link, err := rfserial.Open(serialDevice, serialBaud)
	if err != nil {
		return nil, err
	}
	return &radio{
		name: serialDevice,
		out:  link,
		listen: func(ctx context.Context, h func(time.Duration, bool)) error {
			// Closing the port unblocks a pending read.
			stop := context.AfterFunc(ctx, func() { link.Close() })
			defer stop()

			err := link.Consume(ctx, h)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
		close: link.Close,
	}, nil
}

func openGPIORadio(tx bool) (*radio, error) {
	r := &radio{
		name: fmt.Sprintf("%s:%d", chipName, pinRX),
		listen: func(ctx context.Context, h func(time.Duration, bool)) error {
			src, err := gpio.NewRealEdgeSource(chipName, pinRX, h)
			if err != nil {
				return fmt.Errorf("init gpio receiver: %w", err)
			}
			<-ctx.Done()
			return src.Close()
		},
		close: func() error { return nil },
	}

	if tx {
		w, err := gpio.NewRealPulseWriter(chipName, pinTX, resolution)
		if err != nil {
			return nil, fmt.Errorf("init gpio transmitter: %w", err)
		}
		r.out = w
		r.close = w.Close
	}
	return r, nil
}

// radioLabel describes the radio for status output.
func radioLabel() string {
	if serialDevice != "" {
		return serialDevice
	}
	return "gpio"
}
