package realtime

import (
	"context"
	"sync"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
)

// Feed opens a change subscription for a set of tables. Open returns once the
// backend confirmed the subscription; ctx bounds the lifetime of the Channel.
type Feed interface {
	Open(ctx context.Context, tables []string) (Channel, error)
}

// Channel delivers raw changes. Events is closed when the channel ends; Err
// then reports why (nil after Close).
type Channel interface {
	Events() <-chan entity.RawChange
	Err() error
	Close() error
}

// stream is the Channel every feed in this package hands out.
type stream struct {
	events chan entity.RawChange
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

func newStream(parent context.Context) (*stream, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &stream{
		events: make(chan entity.RawChange, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

func (s *stream) Events() <-chan entity.RawChange { return s.events }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the producer and waits for it to finish.
func (s *stream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// send hands raw to the consumer unless ctx ends first.
func (s *stream) send(ctx context.Context, raw entity.RawChange) bool {
	select {
	case s.events <- raw:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish records err (ignored when ctx was cancelled by Close) and closes Events.
// The producer goroutine must call it exactly on exit.
func (s *stream) finish(ctx context.Context, err error) {
	if ctx.Err() != nil {
		err = nil
	}
	s.closeWith(err)
}

func (s *stream) closeWith(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.events)
		close(s.done)
	})
}

func wanted(tables []string) map[string]bool {
	out := make(map[string]bool, len(tables))
	for _, t := range tables {
		out[t] = true
	}
	return out
}
