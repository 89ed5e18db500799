package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/kaku-bridge/internal/kaku"
	"github.com/sweeney/kaku-bridge/internal/status"
)

func testConfig() status.Config {
	return status.Config{
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
		HeartbeatMs: 900000,
		Radio:       "gpio",
		RXPin:       27,
		TXPin:       17,
		PeriodUs:    260,
		Repeats:     8,
	}
}

func newTestServer(t *testing.T, send SendFunc) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, testConfig())
	srv := New(":0", tr, send)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getStatus(t *testing.T, ts *httptest.Server) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.RecordReceived(kaku.Command{Address: 1234, Unit: 3, IsOn: true, Period: 260 * time.Microsecond}, time.Now())
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.LastCommand == nil {
		t.Fatal("expected last_command")
	}
	if sj.Status.LastCommand.Address != 1234 {
		t.Errorf("LastCommand.Address: got %d, want 1234", sj.Status.LastCommand.Address)
	}
	if sj.Status.LastCommand.State != "ON" {
		t.Errorf("LastCommand.State: got %q, want ON", sj.Status.LastCommand.State)
	}
	if sj.Status.Receiver.Received != 1 {
		t.Errorf("Receiver.Received: got %d, want 1", sj.Status.Receiver.Received)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.RXPin != 27 {
		t.Errorf("Config.RXPin: got %d, want 27", sj.Status.Config.RXPin)
	}
}

func TestJSONNothingReceived(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	sj := getStatus(t, ts)
	if sj.Status.LastCommand != nil {
		t.Errorf("expected no last_command, got %+v", sj.Status.LastCommand)
	}
	if !sj.Status.Receiver.Enabled {
		t.Error("expected receiver enabled")
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getStatus(t, ts)
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.RecordReceived(kaku.Command{Address: 777, IsGroup: true, IsDim: true, DimLevel: 9}, time.Now())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"777", "group", "DIM (9)"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "nothing received yet") {
		t.Error("expected placeholder before any command")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestSendNotRegisteredWithoutSender(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/send", "application/json", strings.NewReader(`{"address":1,"state":"ON"}`))
	if err != nil {
		t.Fatalf("POST /send: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestSend(t *testing.T) {
	var sent []kaku.Command
	ts, tr := newTestServer(t, func(cmd kaku.Command) error {
		sent = append(sent, cmd)
		return nil
	})

	resp, err := http.Post(ts.URL+"/send", "application/json", strings.NewReader(`{"address":42,"unit":2,"state":"on"}`))
	if err != nil {
		t.Fatalf("POST /send: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	var res SendResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if !res.OK || res.Error != "" {
		t.Errorf("unexpected result: %+v", res)
	}

	want := kaku.Command{Address: 42, Unit: 2, IsOn: true}
	if len(sent) != 1 || sent[0] != want {
		t.Fatalf("sent: got %+v, want [%+v]", sent, want)
	}
	if got := tr.Snapshot().Counts.Sent; got != 1 {
		t.Errorf("Counts.Sent: got %d, want 1", got)
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		sendErr  error
		wantCode int
		wantSent int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed, 0},
		{"bad json", http.MethodPost, `ON`, nil, http.StatusBadRequest, 0},
		{"out of range", http.MethodPost, `{"address":1,"unit":16,"state":"ON"}`, nil, http.StatusBadRequest, 0},
		{"transmit fails", http.MethodPost, `{"address":1,"state":"OFF"}`, errors.New("line busy"), http.StatusServiceUnavailable, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ts, tr := newTestServer(t, func(kaku.Command) error {
				calls++
				return tt.sendErr
			})

			req, err := http.NewRequest(tt.method, ts.URL+"/send", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s /send: %v", tt.method, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.wantCode)
			}
			var res SendResult
			json.NewDecoder(resp.Body).Decode(&res)
			if res.OK || res.Error == "" {
				t.Errorf("expected failure result, got %+v", res)
			}
			if calls != tt.wantSent {
				t.Errorf("send calls: got %d, want %d", calls, tt.wantSent)
			}
			if got := tr.Snapshot().Counts.SendErrors; got != tt.wantSent {
				t.Errorf("Counts.SendErrors: got %d, want %d", got, tt.wantSent)
			}
		})
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	sj1 := getStatus(t, ts)
	if sj1.Status.Receiver.Commands != 0 {
		t.Errorf("expected no commands initially, got %d", sj1.Status.Receiver.Commands)
	}

	tr.RecordReceived(kaku.Command{Address: 5}, time.Now())
	tr.RecordReceived(kaku.Command{Address: 5, Repeat: 1}, time.Now())
	tr.SetReceiverEnabled(false)
	tr.SetMQTTConnected(true)

	sj2 := getStatus(t, ts)
	if sj2.Status.Receiver.Commands != 1 {
		t.Errorf("Commands: got %d, want 1", sj2.Status.Receiver.Commands)
	}
	if sj2.Status.Receiver.Received != 2 {
		t.Errorf("Received: got %d, want 2", sj2.Status.Receiver.Received)
	}
	if sj2.Status.Receiver.Enabled {
		t.Error("expected receiver disabled after update")
	}
	if sj2.Status.LastCommand == nil || sj2.Status.LastCommand.State != "OFF" || sj2.Status.LastCommand.Repeat != 1 {
		t.Errorf("LastCommand: got %+v", sj2.Status.LastCommand)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
