package llm

import (
	"context"
	"io"
)

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan Event
}

// newEventStream runs fn on its own goroutine and exposes its events as a Stream.
// A non-nil error from fn becomes a single EventFailure unless the context was
// cancelled, in which case the stream just ends.
func newEventStream(ctx context.Context, run func(context.Context, chan<- Event) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		err := run(streamCtx, ch)
		if err == nil || streamCtx.Err() != nil {
			return
		}
		emit(streamCtx, ch, Event{Type: EventFailure, Text: failureMessage(err), Err: err})
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, events: ch}
}

// emit delivers ev unless ctx is done first. It reports whether ev was sent.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *channelStream) Recv() (Event, error) {
	// Drain anything already buffered before looking at ctx.Done().
	select {
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return Event{}, io.EOF
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	}
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}
