package worker

import (
	"sync"

	"go_backend/message"
)

// Result is one item flowing back from the worker: either a content or
// completion chunk, or a terminal error.
type Result struct {
	Chunk message.Chunk
	Err   error
}

// dispatcher multiplexes the worker's single internal response stream
// by correlation id, per §4.I's "responses multiplex through a single
// return channel; the client-side dispatcher routes by correlation id
// into per-request streams."
type dispatcher struct {
	mu      sync.Mutex
	streams map[string]chan Result
}

func newDispatcher() *dispatcher {
	return &dispatcher{streams: make(map[string]chan Result)}
}

// register opens a buffered per-request stream for correlationID.
func (d *dispatcher) register(correlationID string) <-chan Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan Result, 16)
	d.streams[correlationID] = ch
	return ch
}

// route delivers one result to correlationID's stream. It is a no-op if
// the stream has already been closed and unregistered.
func (d *dispatcher) route(correlationID string, r Result) {
	d.mu.Lock()
	ch, ok := d.streams[correlationID]
	d.mu.Unlock()
	if !ok {
		return
	}
	ch <- r
}

// close delivers a final result (if non-zero) and closes and removes
// correlationID's stream.
func (d *dispatcher) close(correlationID string) {
	d.mu.Lock()
	ch, ok := d.streams[correlationID]
	if ok {
		delete(d.streams, correlationID)
	}
	d.mu.Unlock()
	if ok {
		close(ch)
	}
}
