package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/kaku-bridge/internal/capture"
	"github.com/sweeney/kaku-bridge/internal/gpio"
	"github.com/sweeney/kaku-bridge/internal/kaku"
	"github.com/sweeney/kaku-bridge/internal/mqtt"
	"github.com/sweeney/kaku-bridge/internal/status"
	"github.com/sweeney/kaku-bridge/internal/web"
)

// airEdges returns the edges of cmd transmitted repeats times by a remote:
// a lead-in stop pulse, the frames, and one trailing short pulse.
func airEdges(t *testing.T, cmd kaku.Command, repeats int) []time.Duration {
	t.Helper()
	enc, err := kaku.NewEncoder(kaku.DefaultPeriod, kaku.DefaultResolution)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	f, err := enc.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	durations := []time.Duration{kaku.DefaultPeriod, 40 * kaku.DefaultPeriod}
	for i := 0; i < repeats; i++ {
		durations = append(durations, f.Durations(kaku.DefaultResolution)...)
	}
	durations = append(durations, kaku.DefaultPeriod)
	return kaku.EdgeTimes(0, durations)
}

// collector gathers commands delivered on the receiver goroutine.
type collector struct {
	mu   sync.Mutex
	cmds []kaku.Command
}

func (c *collector) handle(cmd kaku.Command) {
	c.mu.Lock()
	c.cmds = append(c.cmds, cmd)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cmds)
}

// receive replays edges through a running receiver and waits until want
// commands have been handled.
func receive(t *testing.T, edges []time.Duration, want int, handlers ...kaku.Handler) []kaku.Command {
	t.Helper()
	rx := kaku.NewReceiver(kaku.ReceiverConfig{Name: "test"})

	var c collector
	rx.AddCallback(c.handle)
	for _, h := range handlers {
		rx.AddCallback(h)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rx.Run(ctx) }()

	gpio.NewFakeEdgeSource(edges).Replay(func(ts time.Duration, _ bool) { rx.OnEdge(ts) })

	deadline := time.Now().Add(2 * time.Second)
	for c.len() < want && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cmds) != want {
		t.Fatalf("expected %d commands, got %d", want, len(c.cmds))
	}
	return c.cmds
}

// TestIntegrationReceiveToMQTT tests the receive path from radio edges to
// MQTT payloads using fakes.
func TestIntegrationReceiveToMQTT(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})
	heard := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	publish := func(cmd kaku.Command) {
		tracker.RecordReceived(cmd, heard)
		if cmd.Repeat > 0 {
			return
		}
		if err := publisher.Publish(mqtt.Received{Timestamp: heard, Source: "rx", Command: cmd}); err != nil {
			t.Errorf("publish: %v", err)
		}
	}

	on := kaku.Command{Address: 0x2A5F00D, Unit: 7, IsOn: true}
	dim := kaku.Command{Address: 0x2A5F00D, Unit: 7, IsDim: true, DimLevel: 11}

	edges := airEdges(t, on, 4)
	last := edges[len(edges)-1]
	for _, ts := range airEdges(t, dim, 4)[1:] {
		edges = append(edges, last+ts)
	}

	got := receive(t, edges, 8, publish)

	for i, cmd := range got {
		want := on
		if i >= 4 {
			want = dim
		}
		if !cmd.Same(want) || cmd.IsOn != want.IsOn {
			t.Errorf("command %d: got %v, want %v", i, cmd, want)
		}
		if cmd.Repeat != i%4 {
			t.Errorf("command %d: repeat %d, want %d", i, cmd.Repeat, i%4)
		}
		if cmd.Period != kaku.DefaultPeriod {
			t.Errorf("command %d: period %v, want %v", i, cmd.Period, kaku.DefaultPeriod)
		}
	}

	if len(publisher.Payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(publisher.Payloads))
	}

	var first, second mqtt.Payload
	if err := json.Unmarshal(publisher.Payloads[0], &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if err := json.Unmarshal(publisher.Payloads[1], &second); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first.KAKU.State != "ON" || first.KAKU.Unit != 7 || first.KAKU.Address != 0x2A5F00D {
		t.Errorf("first payload: %+v", first.KAKU)
	}
	if second.KAKU.State != "DIM" || second.KAKU.DimLevel == nil || *second.KAKU.DimLevel != 11 {
		t.Errorf("second payload: %+v", second.KAKU)
	}
	if first.KAKU.PeriodUs != 260 {
		t.Errorf("period_us: got %d, want 260", first.KAKU.PeriodUs)
	}

	snap := tracker.Snapshot()
	if snap.Counts.Received != 8 || snap.Counts.Commands != 2 {
		t.Errorf("tracker counts: %+v", snap.Counts)
	}
}

// TestIntegrationMQTTSendLoopback sends a request from MQTT through the
// transmitter and decodes what it would put on the air.
func TestIntegrationMQTTSendLoopback(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    kaku.Command
	}{
		{"unit on", `{"address":31337,"unit":5,"state":"ON"}`, kaku.Command{Address: 31337, Unit: 5, IsOn: true}},
		{"group off", `{"address":31337,"group":true,"state":"OFF"}`, kaku.Command{Address: 31337, IsGroup: true}},
		{"dim", `{"address":31337,"unit":5,"state":"DIM","dim_level":3}`, kaku.Command{Address: 31337, Unit: 5, IsDim: true, DimLevel: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := mqtt.NewFakePublisher()
			out := gpio.NewFakePulseWriter()
			tx, err := kaku.NewTransmitter(out, kaku.TransmitterConfig{Repeats: 5})
			if err != nil {
				t.Fatalf("NewTransmitter: %v", err)
			}

			publisher.OnSend(func(cmd kaku.Command) {
				if err := tx.Send(cmd); err != nil {
					t.Errorf("Send: %v", err)
				}
			})
			if err := publisher.Deliver([]byte(tt.payload)); err != nil {
				t.Fatalf("Deliver: %v", err)
			}

			if out.FrameCount() != 5 {
				t.Fatalf("expected 5 frames, got %d", out.FrameCount())
			}

			// Frames alone carry no lead-in, so the first frame only syncs.
			edges := out.Edges(kaku.DefaultResolution)
			edges = append(edges, edges[len(edges)-1]+kaku.DefaultPeriod)
			got := receive(t, edges, 4)

			for i, cmd := range got {
				if !cmd.Same(tt.want) || cmd.IsOn != tt.want.IsOn {
					t.Errorf("command %d: got %v, want %v", i, cmd, tt.want)
				}
				if cmd.Repeat != i {
					t.Errorf("command %d: repeat %d", i, cmd.Repeat)
				}
			}
		})
	}
}

// TestIntegrationInvalidSendTransmitsNothing verifies rejected requests never
// reach the transmitter.
func TestIntegrationInvalidSendTransmitsNothing(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	out := gpio.NewFakePulseWriter()
	tx, err := kaku.NewTransmitter(out, kaku.TransmitterConfig{})
	if err != nil {
		t.Fatalf("NewTransmitter: %v", err)
	}
	publisher.OnSend(func(cmd kaku.Command) { tx.Send(cmd) })

	for _, payload := range []string{
		`{"address":67108864,"state":"ON"}`,
		`{"address":1,"unit":99,"state":"ON"}`,
		`{"address":1,"state":"DIM"}`,
		`not json`,
	} {
		if err := publisher.Deliver([]byte(payload)); err == nil {
			t.Errorf("%s: expected rejection", payload)
		}
	}

	if out.FrameCount() != 0 {
		t.Errorf("expected nothing transmitted, got %d frames", out.FrameCount())
	}
}

// TestIntegrationCaptureReplay records a transmission to a capture file and
// decodes it offline.
func TestIntegrationCaptureReplay(t *testing.T) {
	cmd := kaku.Command{Address: 123456, IsGroup: true, IsOn: true}

	var buf bytes.Buffer
	rec := &capture.Recorder{Dest: &buf}
	gpio.NewFakeEdgeSource(airEdges(t, cmd, 3)).Replay(func(ts time.Duration, rising bool) {
		if err := rec.Record(capture.Edge{At: ts, Rising: rising}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	})

	edges, err := capture.Timestamps(&buf)
	if err != nil {
		t.Fatalf("Timestamps: %v", err)
	}
	if len(edges) != rec.Count() {
		t.Fatalf("expected %d edges, got %d", rec.Count(), len(edges))
	}

	got := receive(t, edges, 3)
	for i, c := range got {
		if !c.Same(cmd) || !c.IsOn || c.Repeat != i {
			t.Errorf("command %d: got %v", i, c)
		}
	}
}

// TestIntegrationStartupThenShutdown verifies the lifecycle events carry full
// status snapshots.
func TestIntegrationStartupThenShutdown(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := status.NewTracker(start, status.Config{Broker: "tcp://localhost:1883", Radio: "gpio", Repeats: 8})

	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		t.Fatalf("publish startup: %v", err)
	}

	tracker.RecordReceived(kaku.Command{Address: 9, Unit: 1, IsOn: true}, start.Add(time.Minute))
	tracker.RecordSent(nil)

	snap = tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"),
	}); err != nil {
		t.Fatalf("publish shutdown: %v", err)
	}

	names := publisher.SystemEventNames()
	if len(names) != 2 || names[0] != "STARTUP" || names[1] != "SHUTDOWN" {
		t.Fatalf("unexpected events: %v", names)
	}

	var startup, shutdown status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &startup); err != nil {
		t.Fatalf("startup JSON: %v", err)
	}
	if err := json.Unmarshal(publisher.SystemPayloads[1], &shutdown); err != nil {
		t.Fatalf("shutdown JSON: %v", err)
	}
	if startup.Status.LastCommand != nil {
		t.Error("startup should not carry a last command")
	}
	if shutdown.Status.Reason != "SIGTERM" {
		t.Errorf("shutdown reason: got %q", shutdown.Status.Reason)
	}
	if shutdown.Status.LastCommand == nil || shutdown.Status.LastCommand.Address != 9 {
		t.Errorf("shutdown last command: %+v", shutdown.Status.LastCommand)
	}
	if shutdown.Status.Transmitter.Sent != 1 {
		t.Errorf("shutdown sent count: got %d", shutdown.Status.Transmitter.Sent)
	}
}

// TestIntegrationWebSend posts a command to the status server and decodes the
// frames it produced.
func TestIntegrationWebSend(t *testing.T) {
	out := gpio.NewFakePulseWriter()
	tx, err := kaku.NewTransmitter(out, kaku.TransmitterConfig{Repeats: 3})
	if err != nil {
		t.Fatalf("NewTransmitter: %v", err)
	}
	tracker := status.NewTracker(time.Now(), status.Config{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := web.New(ln.Addr().String(), tracker, tx.Send)
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	resp, err := http.Post("http://"+ln.Addr().String()+"/send", "application/json", strings.NewReader(`{"address":77,"unit":3,"state":"OFF"}`))
	if err != nil {
		t.Fatalf("POST /send: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	edges := out.Edges(kaku.DefaultResolution)
	edges = append(edges, edges[len(edges)-1]+kaku.DefaultPeriod)
	got := receive(t, edges, 2)
	want := kaku.Command{Address: 77, Unit: 3}
	for i, c := range got {
		if !c.Same(want) || c.IsOn {
			t.Errorf("command %d: got %v", i, c)
		}
	}
	if tracker.Snapshot().Counts.Sent != 1 {
		t.Errorf("expected 1 sent, got %d", tracker.Snapshot().Counts.Sent)
	}
}
