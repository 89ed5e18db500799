// Package capture records raw receive-line edges to a file and reads them
// back, so transmissions can be decoded offline or replayed in tests.
package capture

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Edge is one recorded transition of the receive line.
type Edge struct {
	At     time.Duration
	Rising bool
}

// Recorder appends edges to Dest as a gob stream.
type Recorder struct {
	Dest io.Writer

	mu  sync.Mutex
	enc *gob.Encoder
	n   int
}

// Record writes e to Dest.
func (r *Recorder) Record(e Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enc == nil {
		r.enc = gob.NewEncoder(r.Dest)
	}
	if err := r.enc.Encode(e); err != nil {
		return fmt.Errorf("while encoding: %w", err)
	}
	r.n++
	return nil
}

// Count returns the number of edges recorded so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// ReadIn decodes edges from r into out until EOF, then closes out.
func ReadIn(out chan<- Edge, r io.Reader) error {
	defer close(out)

	dec := gob.NewDecoder(r)

	for {
		// gob leaves zero-valued fields untouched, so decode into a fresh value.
		var e Edge
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("while decoding: %w", err)
		}

		out <- e
	}
}

// Timestamps collects the timestamps of every edge in r.
func Timestamps(r io.Reader) ([]time.Duration, error) {
	edges := make(chan Edge, 100)

	var out []time.Duration
	var g errgroup.Group
	g.Go(func() error { return ReadIn(edges, r) })
	g.Go(func() error {
		for e := range edges {
			out = append(out, e.At)
		}
		return nil
	})

	return out, g.Wait()
}
