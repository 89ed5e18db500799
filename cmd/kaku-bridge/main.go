// Command kaku-bridge decodes and transmits KlikAanKlikUit 433MHz commands
// and bridges them to MQTT.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/sweeney/kaku-bridge/internal/gpio"
	"github.com/sweeney/kaku-bridge/internal/kaku"
	"github.com/sweeney/kaku-bridge/internal/rfserial"
)

var (
	serialDevice = ""
	serialBaud   = rfserial.DefaultBaud
	chipName     = gpio.DefaultChip
	pinRX        = gpio.PinRX
	pinTX        = gpio.PinTX
	period       = kaku.DefaultPeriod
	resolution   = kaku.DefaultResolution
	repeats      = kaku.DefaultRepeats
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatalln(err)
	}
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kaku-bridge",
		Args:          cobra.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&serialDevice, "serial", serialDevice, "Serial radio board device (empty uses GPIO)")
	f.IntVar(&serialBaud, "baud", serialBaud, "Serial radio board baud rate")
	f.StringVar(&chipName, "chip", chipName, "GPIO chip")
	f.IntVar(&pinRX, "rx-pin", pinRX, "BCM pin number of the receiver data line")
	f.IntVar(&pinTX, "tx-pin", pinTX, "BCM pin number of the transmitter data line")
	f.DurationVar(&period, "period", period, "Transmit symbol period")
	f.DurationVar(&resolution, "resolution", resolution, "Transmit timer tick")
	f.IntVar(&repeats, "repeats", repeats, "Frames per transmitted command")

	cmd.AddCommand(runCommand())
	cmd.AddCommand(sendCommand())
	cmd.AddCommand(listenCommand())
	cmd.AddCommand(&cobra.Command{
		Use:  "record FILE",
		Args: cobra.ExactArgs(1),
		RunE: record,
	})

	replayCmd := &cobra.Command{
		Use:  "replay FILE",
		Args: cobra.ExactArgs(1),
		RunE: replay,
	}
	replayCmd.Flags().BoolVar(&showRepeats, "all", showRepeats, "Also print repeated frames")
	cmd.AddCommand(replayCmd)

	return cmd
}
