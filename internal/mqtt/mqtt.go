// Package mqtt bridges KAKU commands to an MQTT broker, with an abstraction
// for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

// TopicReceived is the MQTT topic for commands heard on the air.
const TopicReceived = "home/kaku/received"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/kaku/system"

// TopicSend is the MQTT topic the bridge listens on for commands to transmit.
const TopicSend = "home/kaku/send"

// ErrInvalidRequest is returned by ParseSendRequest for unusable payloads.
var ErrInvalidRequest = errors.New("mqtt: invalid send request")

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a received command to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(rx Received) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber delivers send requests arriving on TopicSend.
type Subscriber interface {
	// OnSend registers the handler for valid send requests. Invalid
	// requests are logged and dropped.
	OnSend(h func(kaku.Command))
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Received is a decoded command together with when and where it was heard.
type Received struct {
	Timestamp time.Time
	Source    string // receiver name
	Command   kaku.Command
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	KAKU CommandPayload `json:"kaku"`
}

// CommandPayload contains the received command details.
type CommandPayload struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source,omitempty"`
	Address   uint32 `json:"address"`
	Unit      uint8  `json:"unit"`
	Group     bool   `json:"group"`
	State     string `json:"state"`
	DimLevel  *uint8 `json:"dim_level,omitempty"`
	Repeat    int    `json:"repeat"`
	PeriodUs  int64  `json:"period_us"`
}

// FormatPayload creates the JSON payload for a received command.
func FormatPayload(rx Received) ([]byte, error) {
	cmd := rx.Command
	payload := Payload{
		KAKU: CommandPayload{
			Timestamp: rx.Timestamp.UTC().Format(time.RFC3339),
			Source:    rx.Source,
			Address:   cmd.Address,
			Unit:      cmd.Unit,
			Group:     cmd.IsGroup,
			State:     cmd.State(),
			Repeat:    cmd.Repeat,
			PeriodUs:  cmd.Period.Microseconds(),
		},
	}
	if cmd.IsDim {
		level := cmd.DimLevel
		payload.KAKU.DimLevel = &level
	}
	return json.Marshal(payload)
}

// SendRequest is the JSON accepted on TopicSend.
type SendRequest struct {
	Address  *uint32 `json:"address"`
	Unit     uint8   `json:"unit"`
	Group    bool    `json:"group"`
	State    string  `json:"state"`
	DimLevel *uint8  `json:"dim_level"`
}

// ParseSendRequest decodes and validates a send request.
func ParseSendRequest(data []byte) (kaku.Command, error) {
	var req SendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return kaku.Command{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Address == nil {
		return kaku.Command{}, fmt.Errorf("%w: missing address", ErrInvalidRequest)
	}

	cmd := kaku.Command{
		Address: *req.Address,
		Unit:    req.Unit,
		IsGroup: req.Group,
	}

	switch strings.ToUpper(req.State) {
	case kaku.StateOn:
		cmd.IsOn = true
	case kaku.StateOff:
	case kaku.StateDim:
		if req.DimLevel == nil {
			return kaku.Command{}, fmt.Errorf("%w: DIM needs dim_level", ErrInvalidRequest)
		}
		cmd.IsDim = true
		cmd.DimLevel = *req.DimLevel
	default:
		return kaku.Command{}, fmt.Errorf("%w: unknown state %q", ErrInvalidRequest, req.State)
	}

	if err := cmd.Validate(); err != nil {
		return kaku.Command{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return cmd, nil
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
