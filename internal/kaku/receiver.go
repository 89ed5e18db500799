package kaku

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the number of decoded commands buffered between the
// edge handler and the consumer.
const DefaultQueueSize = 256

// Handler receives every decoded command, repeats included.
type Handler func(Command)

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Name identifies the consumer in log output.
	Name string
	// QueueSize bounds the hand-off queue. Zero means DefaultQueueSize.
	QueueSize int
	// Clock is sampled by Interrupt. Zero means monotonic time since
	// the receiver was created.
	Clock func() time.Duration
}

// Receiver owns the decoder for one input line and hands decoded commands
// from the edge context over to a single consumer goroutine.
type Receiver struct {
	name    string
	clock   func() time.Duration
	decoder *Decoder
	enabled atomic.Bool
	queue   chan Command
	dropped atomic.Uint64

	mu       sync.RWMutex
	handlers []Handler
}

// NewReceiver creates an enabled receiver.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Clock == nil {
		start := time.Now()
		cfg.Clock = func() time.Duration { return time.Since(start) }
	}
	r := &Receiver{
		name:    cfg.Name,
		clock:   cfg.Clock,
		decoder: NewDecoder(),
		queue:   make(chan Command, cfg.QueueSize),
	}
	r.enabled.Store(true)
	return r
}

// SetEnabled turns edge processing on or off.
func (r *Receiver) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Enabled reports whether edges are processed.
func (r *Receiver) Enabled() bool {
	return r.enabled.Load()
}

// AddCallback registers h. Handlers run in registration order.
func (r *Receiver) AddCallback(h Handler) {
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

// Dropped returns the number of commands lost to a full queue.
func (r *Receiver) Dropped() uint64 {
	return r.dropped.Load()
}

// Interrupt handles an edge, sampling the receiver's own clock.
func (r *Receiver) Interrupt() {
	r.OnEdge(r.clock())
}

// OnEdge handles an edge seen at ts. It never blocks: when the queue is full
// the command is dropped. Only one goroutine may call OnEdge.
func (r *Receiver) OnEdge(ts time.Duration) {
	if !r.enabled.Load() {
		return
	}

	cmd, ok := r.decoder.Edge(ts)
	if !ok {
		return
	}

	select {
	case r.queue <- cmd:
	default:
		r.dropped.Add(1)
	}
}

// Run delivers queued commands to the handlers until ctx is done.
func (r *Receiver) Run(ctx context.Context) error {
	log.Printf("kaku: receiver %s started", r.name)
	defer log.Printf("kaku: receiver %s stopped", r.name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-r.queue:
			r.mu.RLock()
			handlers := r.handlers
			r.mu.RUnlock()

			for _, h := range handlers {
				h(cmd)
			}
		}
	}
}
