package mqtt

import (
	"sync"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

// FakePublisher records published events for test assertions.
// Safe for concurrent use; read recorded state through the accessor methods
// while other goroutines may still publish.
type FakePublisher struct {
	mu sync.Mutex

	// Received contains all commands that were published.
	Received []Received

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Pending controls the return value of Buffered.
	Pending int

	onSend func(kaku.Command)
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the received command.
func (f *FakePublisher) Publish(rx Received) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(rx)
	if err != nil {
		return err
	}
	f.Received = append(f.Received, rx)
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// OnSend stores the send handler for Deliver.
func (f *FakePublisher) OnSend(h func(kaku.Command)) {
	f.mu.Lock()
	f.onSend = h
	f.mu.Unlock()
}

// Deliver simulates a message arriving on TopicSend. It returns the parse
// error for invalid payloads, which the real publisher only logs.
func (f *FakePublisher) Deliver(payload []byte) error {
	cmd, err := ParseSendRequest(payload)
	if err != nil {
		return err
	}

	f.mu.Lock()
	h := f.onSend
	f.mu.Unlock()

	if h != nil {
		h(cmd)
	}
	return nil
}

// ReceivedEvents returns a copy of the published commands.
func (f *FakePublisher) ReceivedEvents() []Received {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Received(nil), f.Received...)
}

// SystemEventNames returns the Event field of every published system event.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Buffered returns Pending.
func (f *FakePublisher) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pending
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Received = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
