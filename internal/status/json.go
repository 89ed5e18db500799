package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Receiver      ReceiverJSON     `json:"receiver"`
	Transmitter   TransmitterJSON  `json:"transmitter"`
	LastCommand   *LastCommandJSON `json:"last_command,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// ReceiverJSON reports decoding activity.
type ReceiverJSON struct {
	Enabled  bool   `json:"enabled"`
	Received int    `json:"received"`
	Commands int    `json:"commands"`
	Dropped  uint64 `json:"dropped"`
}

// TransmitterJSON reports transmit activity.
type TransmitterJSON struct {
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// LastCommandJSON is the JSON representation of the last decoded frame.
type LastCommandJSON struct {
	Timestamp string `json:"timestamp"`
	Address   uint32 `json:"address"`
	Unit      uint8  `json:"unit"`
	Group     bool   `json:"group"`
	State     string `json:"state"`
	DimLevel  *uint8 `json:"dim_level,omitempty"`
	Repeat    int    `json:"repeat"`
	PeriodUs  int64  `json:"period_us"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Radio       string `json:"radio"`
	RXPin       int    `json:"rx_pin"`
	TXPin       int    `json:"tx_pin"`
	PeriodUs    int64  `json:"period_us"`
	Repeats     int    `json:"repeats"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Receiver: ReceiverJSON{
			Enabled:  snap.ReceiverEnabled,
			Received: snap.Counts.Received,
			Commands: snap.Counts.Commands,
			Dropped:  snap.Counts.Dropped,
		},
		Transmitter: TransmitterJSON{
			Sent:   snap.Counts.Sent,
			Errors: snap.Counts.SendErrors,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker, Buffered: snap.MQTTBuffered},
		Config: ConfigJSON{
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Radio:       snap.Config.Radio,
			RXPin:       snap.Config.RXPin,
			TXPin:       snap.Config.TXPin,
			PeriodUs:    snap.Config.PeriodUs,
			Repeats:     snap.Config.Repeats,
		},
	}

	if snap.Last != nil {
		cmd := snap.Last.Command
		inner.LastCommand = &LastCommandJSON{
			Timestamp: snap.Last.At.UTC().Format(time.RFC3339),
			Address:   cmd.Address,
			Unit:      cmd.Unit,
			Group:     cmd.IsGroup,
			State:     cmd.State(),
			Repeat:    cmd.Repeat,
			PeriodUs:  cmd.Period.Microseconds(),
		}
		if cmd.IsDim {
			level := cmd.DimLevel
			inner.LastCommand.DimLevel = &level
		}
	}

	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
