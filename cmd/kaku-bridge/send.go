package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

var (
	sendAddress uint32
	sendUnit    uint8
	sendGroup   bool
	sendState   = kaku.StateOn
	sendLevel   uint8
)

func sendCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:   "send",
		Short: "Transmit one command",
		Args:  cobra.ExactArgs(0),
		RunE:  send,
	}
	cmd.Flags().Uint32Var(&sendAddress, "address", sendAddress, "Transmitter address (0-67108863)")
	cmd.Flags().Uint8Var(&sendUnit, "unit", sendUnit, "Unit (0-15)")
	cmd.Flags().BoolVar(&sendGroup, "group", sendGroup, "Address every unit")
	cmd.Flags().StringVar(&sendState, "state", sendState, "ON, OFF or DIM")
	cmd.Flags().Uint8Var(&sendLevel, "level", sendLevel, "Dim level (0-15) for DIM")
	cmd.MarkFlagRequired("address")

	return &cmd
}

// commandFromFlags builds the command described by the send flags.
func commandFromFlags() (kaku.Command, error) {
	cmd := kaku.Command{
		Address: sendAddress,
		Unit:    sendUnit,
		IsGroup: sendGroup,
	}

	switch strings.ToUpper(sendState) {
	case kaku.StateOn:
		cmd.IsOn = true
	case kaku.StateOff:
	case kaku.StateDim:
		cmd.IsDim = true
		cmd.DimLevel = sendLevel
	default:
		return kaku.Command{}, fmt.Errorf("unknown state %q", sendState)
	}

	return cmd, cmd.Validate()
}

func send(_ *cobra.Command, _ []string) error {
	c, err := commandFromFlags()
	if err != nil {
		return err
	}

	r, err := openRadio(true)
	if err != nil {
		return err
	}
	defer r.close()

	tx, err := kaku.NewTransmitter(r.out, kaku.TransmitterConfig{
		Period:     period,
		Resolution: resolution,
		Repeats:    repeats,
	})
	if err != nil {
		return fmt.Errorf("init transmitter: %w", err)
	}

	if err := tx.Send(c); err != nil {
		return fmt.Errorf("sending %s: %w", c, err)
	}
	fmt.Printf("sent %s x%d\n", c, tx.Repeats())
	return nil
}
