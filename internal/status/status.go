// Package status provides a thread-safe status tracker for the kaku-bridge daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Broker      string
	HTTPPort    string
	HeartbeatMs int64
	Radio       string // "gpio" or the serial device path
	RXPin       int
	TXPin       int
	PeriodUs    int64
	Repeats     int
}

// Counts are running totals since startup.
type Counts struct {
	Received   int    // every decoded frame, repeats included
	Commands   int    // first receptions only
	Sent       int    // commands transmitted
	SendErrors int    // failed transmissions
	Dropped    uint64 // decoded frames lost to a full queue
}

// LastCommand is the most recent decoded frame.
type LastCommand struct {
	Command kaku.Command
	At      time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Counts          Counts
	Last            *LastCommand
	ReceiverEnabled bool
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	MQTTBuffered    int
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:       startTime,
			Config:          cfg,
			ReceiverEnabled: true,
		},
	}
}

// RecordReceived counts a decoded frame and remembers it as the last command.
func (t *Tracker) RecordReceived(cmd kaku.Command, at time.Time) {
	t.mu.Lock()
	t.snap.Counts.Received++
	if cmd.Repeat == 0 {
		t.snap.Counts.Commands++
	}
	t.snap.Last = &LastCommand{Command: cmd, At: at}
	t.mu.Unlock()
}

// RecordSent counts a transmission attempt and its outcome.
func (t *Tracker) RecordSent(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.Counts.SendErrors++
	} else {
		t.snap.Counts.Sent++
	}
	t.mu.Unlock()
}

// SetDropped sets the receiver's dropped-frame total.
func (t *Tracker) SetDropped(n uint64) {
	t.mu.Lock()
	t.snap.Counts.Dropped = n
	t.mu.Unlock()
}

// SetReceiverEnabled records whether edges are being decoded.
func (t *Tracker) SetReceiverEnabled(enabled bool) {
	t.mu.Lock()
	t.snap.ReceiverEnabled = enabled
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBuffered sets the number of messages waiting for the broker.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	s.Now = time.Now()
	return s
}
