package events

import "context"

// DefaultBufferSize matches spec §5's recommended output buffer size.
const DefaultBufferSize = 128

// Multiplexer is the single mpsc channel every per-model task, stage
// runner, and the orchestrator itself send Events onto (spec §5,
// "Scheduling model"). Producers call Send; exactly one consumer drains
// Events(). Send blocks when the buffer is full, which is the mechanism by
// which a slow consumer throttles model streaming (spec §5,
// "Backpressure").
//
// Close must only be called after the caller has confirmed (typically via a
// sync.WaitGroup covering every producer goroutine) that no further Send
// calls will arrive — the same discipline the orchestrator's stage barriers
// already provide, since a stage is defined as complete only once every
// per-model task has terminated (spec §4.5). Calling Send after Close, or
// concurrently with it, is a programmer error, matching how Go channels
// behave everywhere else in the standard library.
type Multiplexer struct {
	ch chan Event
}

// NewMultiplexer creates a Multiplexer with the given buffer size. A
// non-positive size falls back to DefaultBufferSize.
func NewMultiplexer(bufferSize int) *Multiplexer {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Multiplexer{ch: make(chan Event, bufferSize)}
}

// Send delivers ev to the consumer, blocking while the buffer is full. It
// returns ctx.Err() if ctx is cancelled before the send completes.
func (m *Multiplexer) Send(ctx context.Context, ev Event) error {
	select {
	case m.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the channel consumers should range over. It is closed
// exactly once, by Close.
func (m *Multiplexer) Events() <-chan Event {
	return m.ch
}

// Close closes the output channel, signalling the consumer that no further
// events will arrive. See the Multiplexer doc comment for the calling
// discipline this requires.
func (m *Multiplexer) Close() {
	close(m.ch)
}
