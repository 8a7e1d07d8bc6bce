package event

import (
	"encoding/json"
	"io"
	"sync"
)

// Fanout distributes published events to any number of subscriber
// channels. Sends are non-blocking: a subscriber that stops draining loses
// events rather than stalling the publisher.
type Fanout struct {
	mu     sync.RWMutex
	subs   map[<-chan Event]chan Event
	buffer int
	closed bool
}

// NewFanout creates a fanout whose subscriber channels buffer the given
// number of events.
func NewFanout(buffer int) *Fanout {
	if buffer < 1 {
		buffer = 1
	}
	return &Fanout{
		subs:   make(map[<-chan Event]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers a new consumer channel.
func (f *Fanout) Subscribe() <-chan Event {
	ch := make(chan Event, f.buffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subs[ch] = ch
	return ch
}

// Unsubscribe removes a consumer and closes its channel.
func (f *Fanout) Unsubscribe(ch <-chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(sub)
	}
}

// Publish delivers a batch to every subscriber in order.
func (f *Fanout) Publish(events []Event) {
	if len(events) == 0 {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, sub := range f.subs {
		for _, ev := range events {
			select {
			case sub <- ev:
			default:
			}
		}
	}
}

// Close closes every subscriber channel and rejects future publishes.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch, sub := range f.subs {
		delete(f.subs, ch)
		close(sub)
	}
}

// WriterSink writes each event as one JSON line. Useful for headless runs
// piping events to another process, and for tests asserting wire shape.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterSink wraps an io.Writer.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

// Publish encodes the batch, one event per line.
func (s *WriterSink) Publish(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		// Encoding a fixed struct cannot fail; a broken pipe just stops
		// the stream.
		_ = s.enc.Encode(ev)
	}
}

type discard struct{}

func (discard) Publish([]Event) {}

// Discard drops every event.
var Discard Sink = discard{}
