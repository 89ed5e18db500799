package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/kaku-bridge/internal/kaku"
)

// BufferSize is the number of messages held while the broker is unreachable.
const BufferSize = 100

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client

	mu       sync.Mutex
	buf      *ringBuffer
	onSend   func(kaku.Command)
	connects int
}

// NewRealPublisher creates a publisher connected to the given broker.
// If the broker cannot be reached in time the publisher keeps retrying in
// the background and buffers messages until it connects.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := &RealPublisher{buf: newRingBuffer(BufferSize)}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, buffering until connected", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect replays buffered messages and restores the send subscription.
// paho calls it on its own goroutine after every (re)connect.
func (p *RealPublisher) onConnect(client paho.Client) {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.connects++
	reconnected := p.connects > 1
	handler := p.onSend
	p.mu.Unlock()

	if handler != nil {
		p.subscribe(client, handler)
	}

	if len(msgs) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(msgs))
	}
	for _, m := range msgs {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	if reconnected {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			client.Publish(TopicSystem, 1, false, payload)
		}
	}
}

// OnSend subscribes to TopicSend and passes valid requests to h.
func (p *RealPublisher) OnSend(h func(kaku.Command)) {
	p.mu.Lock()
	p.onSend = h
	p.mu.Unlock()

	if p.client.IsConnectionOpen() {
		p.subscribe(p.client, h)
	}
}

func (p *RealPublisher) subscribe(client paho.Client, h func(kaku.Command)) {
	token := client.Subscribe(TopicSend, 1, func(_ paho.Client, msg paho.Message) {
		cmd, err := ParseSendRequest(msg.Payload())
		if err != nil {
			log.Printf("mqtt: ignoring message on %s: %v", msg.Topic(), err)
			return
		}
		h(cmd)
	})
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: subscribe %s: timeout", TopicSend)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe %s: %v", TopicSend, err)
	}
}

// Publish sends a received command to the MQTT broker.
func (p *RealPublisher) Publish(rx Received) error {
	payload, err := FormatPayload(rx)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(TopicReceived, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for shutdown events - we want to ensure delivery
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
