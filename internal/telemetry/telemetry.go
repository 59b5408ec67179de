// Package telemetry reports usage events off the request path. Events are queued
// on a bounded channel and drained by one goroutine; when the queue is full the
// event is dropped.
package telemetry

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/scalaidx/internal/debug"
)

// DefaultBuffer is the queue length used when none is configured
const DefaultBuffer = 64

// Event is one category/action/label tuple with an optional value and duration
type Event struct {
	Category string
	Action   string
	Label    string
	Value    int
	Duration time.Duration
}

// Sink receives events. Implementations are called from the dispatcher goroutine only.
type Sink interface {
	Send(Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event)

func (f SinkFunc) Send(e Event) { f(e) }

// DebugSink writes events through the component debug log
type DebugSink struct{}

func (DebugSink) Send(e Event) {
	debug.Log("TELEMETRY", "%s/%s %s value=%d duration=%s\n", e.Category, e.Action, e.Label, e.Value, e.Duration)
}

// Dispatcher queues events for a sink. A nil *Dispatcher accepts and discards events.
type Dispatcher struct {
	sink   Sink
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher starts the drain goroutine. Close must be called to stop it.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if sink == nil {
		sink = DebugSink{}
	}
	d := &Dispatcher{
		sink:   sink,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for e := range d.events {
		d.sink.Send(e)
		d.sent.Add(1)
	}
}

// Emit queues an event without blocking
func (d *Dispatcher) Emit(e Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.events <- e:
	default:
		d.dropped.Add(1)
	}
}

// Timed returns a function that, when called with the handler's result, emits a
// timing event and, for slice results, a result-count event
func (d *Dispatcher) Timed(category, action string) func(result interface{}) {
	if d == nil {
		return func(interface{}) {}
	}
	start := time.Now()
	return func(result interface{}) {
		elapsed := time.Since(start)
		if n, ok := resultCount(result); ok {
			d.Emit(Event{Category: category, Action: action, Label: "results", Value: n})
		}
		d.Emit(Event{Category: category, Action: action, Label: "timing", Duration: elapsed})
	}
}

// resultCount reports the length of slice results
func resultCount(result interface{}) (int, bool) {
	if result == nil {
		return 0, false
	}
	v := reflect.ValueOf(result)
	if v.Kind() == reflect.Slice {
		return v.Len(), true
	}
	return 0, false
}

// Close stops accepting events and waits for queued ones to reach the sink
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
	<-d.done
}

// Counters returns how many events were delivered and dropped
func (d *Dispatcher) Counters() (sent, dropped int64) {
	if d == nil {
		return 0, 0
	}
	return d.sent.Load(), d.dropped.Load()
}
