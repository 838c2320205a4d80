package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrClosed is returned for events sent after a terminal event.
var ErrClosed = errors.New("stream closed")

// Emitter writes events as SSE frames: "event: <type>\ndata: <json>\n\n".
// It is safe for concurrent use; frames appear in the order Send is called.
type Emitter struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
	count  int
}

// NewEmitter creates an emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Send writes one frame and flushes w when it supports flushing. After a
// complete or error frame the emitter is closed.
func (e *Emitter) Send(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := flush(e.w); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}

	e.count++
	if ev.Terminal() {
		e.closed = true
	}
	return nil
}

// Closed reports whether a terminal event has been written.
func (e *Emitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Count returns the number of frames written.
func (e *Emitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func flush(w io.Writer) error {
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}

// Recorder is a Sink that keeps events in memory and enforces the same
// terminal-event rule as Emitter.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// Send records ev.
func (r *Recorder) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.events = append(r.events, ev)
	if ev.Terminal() {
		r.closed = true
	}
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
