package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Send(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8)

	d.Emit(Event{Category: "lsp", Action: "hover"})
	d.Emit(Event{Category: "lsp", Action: "definition"})
	d.Close()

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "hover", events[0].Action)
	assert.Equal(t, "definition", events[1].Action)

	sent, dropped := d.Counters()
	assert.Equal(t, int64(2), sent)
	assert.Equal(t, int64(0), dropped)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	delivered := make(chan struct{}, 1)
	sink := SinkFunc(func(Event) {
		select {
		case delivered <- struct{}{}:
		default:
		}
		<-release
	})
	d := NewDispatcher(sink, 1)

	// First event is picked up by the drain goroutine and blocks in the sink
	d.Emit(Event{Action: "a"})
	<-delivered
	// Second fills the buffer, third is dropped
	d.Emit(Event{Action: "b"})
	d.Emit(Event{Action: "c"})

	_, dropped := d.Counters()
	assert.Equal(t, int64(1), dropped)

	close(release)
	d.Close()

	sent, _ := d.Counters()
	assert.Equal(t, int64(2), sent)
}

func TestDispatcher_EmitAfterClose(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, 4)
	d.Close()
	d.Close()

	d.Emit(Event{Action: "late"})
	_, dropped := d.Counters()
	assert.Equal(t, int64(1), dropped)
}

func TestDispatcher_Timed(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8)

	done := d.Timed("workspace", "symbol")
	time.Sleep(2 * time.Millisecond)
	done([]string{"a", "b", "c"})

	d.Timed("hover", "hover")(nil)
	d.Close()

	events := sink.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, Event{Category: "workspace", Action: "symbol", Label: "results", Value: 3}, events[0])
	assert.Equal(t, "timing", events[1].Label)
	assert.GreaterOrEqual(t, events[1].Duration, 2*time.Millisecond)
	assert.Equal(t, "hover", events[2].Category)
	assert.Equal(t, "timing", events[2].Label)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Emit(Event{})
	d.Timed("a", "b")([]int{1})
	d.Close()
	sent, dropped := d.Counters()
	assert.Zero(t, sent)
	assert.Zero(t, dropped)
}

func TestDispatcher_DefaultSink(t *testing.T) {
	d := NewDispatcher(nil, 0)
	d.Emit(Event{Category: "x", Action: "y"})
	d.Close()
	sent, _ := d.Counters()
	assert.Equal(t, int64(1), sent)
}
