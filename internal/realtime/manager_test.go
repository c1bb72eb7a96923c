package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	*stream
	in   chan entity.RawChange
	fail chan error
}

func (s *fakeStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type fakeFeed struct {
	mu      sync.Mutex
	opens   int
	block   bool
	openErr error
	streams []*fakeStream
}

func (f *fakeFeed) Open(ctx context.Context, _ []string) (Channel, error) {
	f.mu.Lock()
	f.opens++
	block, openErr := f.block, f.openErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if openErr != nil {
		return nil, openErr
	}

	s, sctx := newStream(ctx)
	fs := &fakeStream{stream: s, in: make(chan entity.RawChange), fail: make(chan error, 1)}
	go func() {
		for {
			select {
			case <-sctx.Done():
				s.finish(sctx, nil)
				return
			case err := <-fs.fail:
				s.finish(sctx, err)
				return
			case raw := <-fs.in:
				if !s.send(sctx, raw) {
					s.finish(sctx, nil)
					return
				}
			}
		}
	}()

	f.mu.Lock()
	f.streams = append(f.streams, fs)
	f.mu.Unlock()
	return fs, nil
}

func (f *fakeFeed) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeFeed) latest() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

type recorder struct {
	mu      sync.Mutex
	changes []entity.Change
}

func (r *recorder) add(c entity.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func testConfig() Config {
	return Config{
		Tables:           []string{entity.TableJobs, entity.TablePosts},
		SubscribeTimeout: 50 * time.Millisecond,
		BackoffBase:      5 * time.Millisecond,
		BackoffMax:       20 * time.Millisecond,
	}
}

func jobInsert(id float64) entity.RawChange {
	return entity.RawChange{EventType: entity.Insert, Table: entity.TableJobs, New: map[string]any{"id": id, "title": "job"}}
}

func waitSubscribed(t *testing.T, m *Manager, feed *fakeFeed) *fakeStream {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == StateSubscribed && feed.latest() != nil }, time.Second, time.Millisecond)
	return feed.latest()
}

func TestManager_RefCountedTeardown(t *testing.T) {
	feed := &fakeFeed{}
	m := NewManager(feed, fetchers.NewNormalizer(nil), testConfig())
	assert.Equal(t, StateIdle, m.State())

	var jobs, posts recorder
	unsubJobs := m.Subscribe([]string{entity.TableJobs}, jobs.add)
	unsubPosts := m.Subscribe([]string{entity.TablePosts}, posts.add)
	ch := waitSubscribed(t, m, feed)
	assert.Equal(t, 1, feed.openCount())

	ch.in <- jobInsert(1)
	require.Eventually(t, func() bool { return jobs.count() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, posts.count())

	unsubJobs()
	unsubJobs()
	assert.Equal(t, 1, m.Listeners())
	assert.False(t, ch.closed(), "channel must survive while a listener remains")

	unsubPosts()
	assert.True(t, ch.closed())
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 1, feed.openCount())
}

func TestManager_ReconnectKeepsListenersOnce(t *testing.T) {
	feed := &fakeFeed{}
	m := NewManager(feed, fetchers.NewNormalizer(nil), testConfig())
	defer m.Close()

	var states []State
	var statesMu sync.Mutex
	m.OnStateChange(func(s State, _ error) {
		statesMu.Lock()
		states = append(states, s)
		statesMu.Unlock()
	})

	var got recorder
	m.Subscribe([]string{entity.TableJobs}, got.add)
	first := waitSubscribed(t, m, feed)

	first.fail <- errors.New("connection reset")
	require.Eventually(t, func() bool { return feed.openCount() == 2 && m.State() == StateSubscribed }, time.Second, time.Millisecond)
	second := feed.latest()
	require.NotSame(t, first, second)

	second.in <- jobInsert(7)
	require.Eventually(t, func() bool { return got.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, got.count(), "event delivered once after reconnect")
	assert.Equal(t, 1, m.Listeners())

	statesMu.Lock()
	assert.Contains(t, states, StateChannelError)
	statesMu.Unlock()
	assert.True(t, apperrors.Is(m.Err(), apperrors.ErrCodeRealtimeChannel))
}

func TestManager_SubscribeTimeout(t *testing.T) {
	feed := &fakeFeed{block: true}
	m := NewManager(feed, fetchers.NewNormalizer(nil), testConfig())

	unsubscribe := m.Subscribe([]string{entity.TableJobs}, func(entity.Change) {})
	require.Eventually(t, func() bool {
		err := m.Err()
		return err != nil && apperrors.Is(err, apperrors.ErrCodeRealtimeChannel)
	}, time.Second, time.Millisecond)

	var appErr *apperrors.Error
	require.True(t, errors.As(m.Err(), &appErr))
	assert.Equal(t, string(StateTimedOut), appErr.Subject)

	unsubscribe()
	assert.Equal(t, StateIdle, m.State())
}

func TestManager_OpenErrorIsNonFatal(t *testing.T) {
	feed := &fakeFeed{openErr: errors.New("refused")}
	m := NewManager(feed, fetchers.NewNormalizer(nil), testConfig())
	defer m.Close()

	m.Subscribe([]string{entity.TableJobs}, func(entity.Change) {})
	require.Eventually(t, func() bool { return feed.openCount() >= 3 }, time.Second, time.Millisecond)

	feed.mu.Lock()
	feed.openErr = nil
	feed.mu.Unlock()
	waitSubscribed(t, m, feed)
}

func TestManager_DropsMalformedEvents(t *testing.T) {
	feed := &fakeFeed{}
	m := NewManager(feed, fetchers.NewNormalizer(nil), testConfig())
	defer m.Close()

	var got recorder
	m.Subscribe([]string{entity.TableJobs}, got.add)
	ch := waitSubscribed(t, m, feed)

	ch.in <- entity.RawChange{EventType: "TRUNCATE", Table: entity.TableJobs}
	ch.in <- entity.RawChange{EventType: entity.Update, Table: entity.TableJobs}
	ch.in <- jobInsert(3)

	require.Eventually(t, func() bool { return got.count() == 1 }, time.Second, time.Millisecond)
	got.mu.Lock()
	assert.Equal(t, "3", got.changes[0].ID())
	got.mu.Unlock()
	assert.Equal(t, StateSubscribed, m.State())
}

func TestManager_Backoff(t *testing.T) {
	m := NewManager(&fakeFeed{}, nil, Config{
		BackoffBase:   500 * time.Millisecond,
		BackoffMax:    30 * time.Second,
		BackoffFactor: 2,
		Jitter:        0.2,
	})
	for attempt, want := range []time.Duration{
		500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second,
	} {
		d := m.backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(float64(want)*0.8))
		assert.LessOrEqual(t, d, time.Duration(float64(want)*1.2))
	}
	assert.LessOrEqual(t, m.backoff(20), 36*time.Second)
}

func TestMultiFeed_RoutesAndFailsTogether(t *testing.T) {
	pg, mongo := &fakeFeed{}, &fakeFeed{}
	multi := &MultiFeed{Routes: map[string]Feed{
		entity.TableJobs:  pg,
		entity.TableUsers: pg,
		entity.TablePosts: mongo,
	}}
	assert.Equal(t, []string{"jobs", "posts", "users"}, multi.Tables())

	ch, err := multi.Open(context.Background(), multi.Tables())
	require.NoError(t, err)
	assert.Equal(t, 1, pg.openCount())
	assert.Equal(t, 1, mongo.openCount())

	pg.latest().in <- jobInsert(1)
	select {
	case raw := <-ch.Events():
		assert.Equal(t, entity.TableJobs, raw.Table)
	case <-time.After(time.Second):
		t.Fatal("merged event not delivered")
	}

	mongo.latest().fail <- errors.New("cursor killed")
	require.Eventually(t, func() bool { return pg.latest().closed() }, time.Second, time.Millisecond)
	for range ch.Events() {
	}
	assert.EqualError(t, ch.Err(), "cursor killed")

	_, err = multi.Open(context.Background(), []string{"stories"})
	assert.ErrorIs(t, err, errUnroutedTable)
}
