package main

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/kaku-bridge/internal/kaku"
	"github.com/sweeney/kaku-bridge/internal/mqtt"
	"github.com/sweeney/kaku-bridge/internal/status"
)

// sendQueueSize bounds the MQTT send requests waiting for the transmitter.
const sendQueueSize = 16

var errSendQueueFull = errors.New("send queue full")

// bridge connects the receiver and transmitter to MQTT and the status tracker.
type bridge struct {
	receiver       *kaku.Receiver
	tx             *kaku.Transmitter
	publisher      mqtt.Publisher
	mqttStatus     mqtt.ConnectionStatus
	tracker        *status.Tracker
	source         string
	publishRepeats bool
	now            func() time.Time

	sends chan kaku.Command
	txMu  sync.Mutex
}

func newBridge(rx *kaku.Receiver, tx *kaku.Transmitter, publisher mqtt.Publisher, tracker *status.Tracker) *bridge {
	b := &bridge{
		receiver:  rx,
		tx:        tx,
		publisher: publisher,
		tracker:   tracker,
		now:       time.Now,
		sends:     make(chan kaku.Command, sendQueueSize),
	}
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		b.mqttStatus = cs
	}
	rx.AddCallback(b.onCommand)
	return b
}

// onCommand runs on the receiver goroutine for every decoded frame.
func (b *bridge) onCommand(cmd kaku.Command) {
	t := b.now()
	b.tracker.RecordReceived(cmd, t)
	b.tracker.SetDropped(b.receiver.Dropped())

	if cmd.Repeat > 0 && !b.publishRepeats {
		return
	}

	log.Printf("received: %s", cmd)
	rx := mqtt.Received{Timestamp: t, Source: b.source, Command: cmd}
	if err := b.publisher.Publish(rx); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
}

// enqueue hands a send request to the transmit loop without blocking the
// MQTT client.
func (b *bridge) enqueue(cmd kaku.Command) {
	select {
	case b.sends <- cmd:
	default:
		log.Printf("dropping send %s: %v", cmd, errSendQueueFull)
		b.tracker.RecordSent(errSendQueueFull)
	}
}

// send transmits cmd with the receiver paused so it does not decode the
// bridge's own transmission.
func (b *bridge) send(cmd kaku.Command) error {
	b.txMu.Lock()
	defer b.txMu.Unlock()

	enabled := b.receiver.Enabled()
	b.receiver.SetEnabled(false)
	b.tracker.SetReceiverEnabled(false)

	err := b.tx.Send(cmd)

	b.receiver.SetEnabled(enabled)
	b.tracker.SetReceiverEnabled(enabled)

	if err != nil {
		log.Printf("send %s failed: %v", cmd, err)
		return err
	}
	log.Printf("sent: %s (x%d)", cmd, b.tx.Repeats())
	return nil
}

// transmitLoop sends queued requests until ctx is done.
func (b *bridge) transmitLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-b.sends:
			b.tracker.RecordSent(b.send(cmd))
		}
	}
}

// publishStatus publishes a system event carrying a full status snapshot.
func (b *bridge) publishStatus(event, reason string, retained bool) error {
	b.refresh()
	snap := b.tracker.Snapshot()
	return b.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
}

type bufferedPublisher interface {
	Buffered() int
}

// refresh copies connection state into the tracker for HTTP consumers.
func (b *bridge) refresh() {
	if b.mqttStatus != nil {
		b.tracker.SetMQTTConnected(b.mqttStatus.IsConnected())
	}
	if bp, ok := b.publisher.(bufferedPublisher); ok {
		b.tracker.SetMQTTBuffered(bp.Buffered())
	}
	b.tracker.SetDropped(b.receiver.Dropped())
}

// loop publishes heartbeats and keeps the tracker fresh until a signal
// arrives or ctx is done. A nil heartbeat channel disables heartbeats.
func (b *bridge) loop(ctx context.Context, refresh, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if err := b.publishStatus("SHUTDOWN", signalName, true); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-refresh:
			b.refresh()

		case <-heartbeat:
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				b.tracker.SetNetwork(net)
			}
			snap := b.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v received=%d commands=%d sent=%d dropped=%d",
				snap.Uptime().Truncate(time.Second), snap.Counts.Received, snap.Counts.Commands, snap.Counts.Sent, snap.Counts.Dropped)
			if err := b.publishStatus("HEARTBEAT", "", false); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
