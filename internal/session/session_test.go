package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/realtime"
	"github.com/anonto42/alumni-connect/backend/internal/refetch"
	"github.com/anonto42/alumni-connect/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher[T entity.Entity] struct {
	items []T
	err   error
}

func (f staticFetcher[T]) Fetch(context.Context, entity.Filters) fetchers.Result[T] {
	return fetchers.Result[T]{Data: f.items, Err: f.err}
}

type staticMembers []string

func (m staticMembers) MemberIDs(context.Context, uint) ([]string, error) { return m, nil }

type failingMembers struct{}

func (failingMembers) MemberIDs(context.Context, uint) ([]string, error) {
	return nil, errors.New("db down")
}

type fakeChannel struct {
	events chan entity.RawChange
	once   sync.Once
}

func (c *fakeChannel) Events() <-chan entity.RawChange { return c.events }
func (c *fakeChannel) Err() error                      { return nil }
func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.events) })
	return nil
}

type fakeFeed struct {
	mu       sync.Mutex
	channels []*fakeChannel
}

func (f *fakeFeed) Open(context.Context, []string) (realtime.Channel, error) {
	ch := &fakeChannel{events: make(chan entity.RawChange)}
	f.mu.Lock()
	f.channels = append(f.channels, ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeFeed) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func (f *fakeFeed) send(raw entity.RawChange) {
	f.mu.Lock()
	ch := f.channels[len(f.channels)-1]
	f.mu.Unlock()
	ch.events <- raw
}

type noopBackend struct{}

func (noopBackend) ToggleSavedJob(context.Context, string, uint) (bool, error) { return true, nil }
func (noopBackend) ToggleEventRegistration(context.Context, string, uint) (bool, error) {
	return true, nil
}
func (noopBackend) ToggleConnection(context.Context, string, uint) (bool, error) { return true, nil }
func (noopBackend) ToggleLike(context.Context, string, uint) (bool, int, error)  { return true, 1, nil }
func (noopBackend) CreatePost(context.Context, uint, models.CreatePostRequest) (entity.Post, error) {
	return entity.Post{ID: "p"}, nil
}
func (noopBackend) CreateJob(context.Context, uint, models.CreateJobRequest) (entity.Job, error) {
	return entity.Job{ID: "j"}, nil
}
func (noopBackend) CreateEvent(context.Context, uint, models.CreateEventRequest) (entity.Event, error) {
	return entity.Event{ID: "e"}, nil
}
func (noopBackend) AddComment(context.Context, uint, string, models.CreateCommentRequest) (entity.Comment, error) {
	return entity.Comment{ID: "c"}, nil
}
func (noopBackend) MarkNotificationRead(context.Context, string, uint) error { return nil }
func (noopBackend) MarkAllNotificationsRead(context.Context, uint) error     { return nil }

func testDeps(feed realtime.Feed) Deps {
	return Deps{
		Fetchers: refetch.Fetchers{
			Jobs:          staticFetcher[entity.Job]{items: []entity.Job{{ID: "1", IsSaved: true}, {ID: "2"}}},
			Events:        staticFetcher[entity.Event]{err: errors.New("events unavailable")},
			Notifications: staticFetcher[entity.Notification]{items: []entity.Notification{{ID: "7", RecipientID: "42"}}},
		},
		Backend:    noopBackend{},
		Feed:       feed,
		Normalizer: fetchers.NewNormalizer(nil),
		Memberships: map[store.MembershipSet]MemberLister{
			store.SavedJobs:   staticMembers{"1"},
			store.Connections: failingMembers{},
		},
	}
}

func testConfig() Config {
	return Config{
		ToastTTL: time.Minute,
		Realtime: realtime.Config{SubscribeTimeout: time.Second, BackoffBase: 5 * time.Millisecond},
		Refetch:  refetch.Config{Debounce: 10 * time.Millisecond},
	}
}

func TestSession_StartLoadsEverything(t *testing.T) {
	deps := testDeps(nil)
	s := New(42, entity.Author{ID: "42"}, deps, testConfig())
	defer s.Close()

	require.NoError(t, s.Start(context.Background(), deps.Memberships))
	state := s.Store.State()
	assert.Equal(t, []string{"1", "2"}, state.Jobs.IDs())
	assert.True(t, state.SavedJobs.Has("1"))
	assert.Equal(t, store.PhaseLoaded, state.Load(store.CollectionJobs).Phase)
	assert.Equal(t, store.PhaseError, state.Load(store.CollectionEvents).Phase)
	assert.Equal(t, 1, state.UnreadCount)
	assert.Nil(t, s.Realtime)
}

func TestSession_AppliesRealtimeChanges(t *testing.T) {
	feed := &fakeFeed{}
	deps := testDeps(feed)
	s := New(42, entity.Author{ID: "42"}, deps, testConfig())
	defer s.Close()
	require.NoError(t, s.Start(context.Background(), deps.Memberships))

	require.Eventually(t, func() bool { return s.Realtime.State() == realtime.StateSubscribed }, time.Second, time.Millisecond)
	assert.Equal(t, 1, feed.opened(), "both listeners share one channel")

	feed.send(entity.RawChange{EventType: entity.Insert, Table: entity.TableJobs, New: map[string]any{"id": float64(3), "title": "SRE"}})
	require.Eventually(t, func() bool { return s.Store.State().Jobs.Has("3") }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"3", "1", "2"}, s.Store.State().Jobs.IDs())

	// someone else's notification never reaches this store
	feed.send(entity.RawChange{EventType: entity.Insert, Table: entity.TableNotifications,
		New: map[string]any{"id": float64(8), "recipient_id": float64(99), "message": "not yours"}})
	feed.send(entity.RawChange{EventType: entity.Insert, Table: entity.TableNotifications,
		New: map[string]any{"id": float64(9), "recipient_id": float64(42), "message": "Ada liked your post"}})

	require.Eventually(t, func() bool { return s.Store.State().Notifications.Has("9") }, time.Second, time.Millisecond)
	state := s.Store.State()
	assert.False(t, state.Notifications.Has("8"))
	assert.Equal(t, 2, state.UnreadCount)
	require.NotNil(t, state.Toast)
	assert.Equal(t, store.ToastInfo, state.Toast.Kind)
	assert.Equal(t, "Ada liked your post", state.Toast.Message)

	s.Close()
	assert.Equal(t, realtime.StateIdle, s.Realtime.State())
	assert.Zero(t, s.Realtime.Listeners())
}

func TestManager_StartIsIdempotentPerUser(t *testing.T) {
	builds := 0
	m := NewManager(func(uint) Deps {
		builds++
		return testDeps(nil)
	}, testConfig())

	first, err := m.Start(context.Background(), 42, entity.Author{ID: "42"})
	require.NoError(t, err)
	again, err := m.Start(context.Background(), 42, entity.Author{ID: "42"})
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, builds)

	other, err := m.Start(context.Background(), 7, entity.Author{ID: "7"})
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, m.Len())

	m.End(42)
	m.End(42)
	_, ok := m.Get(42)
	assert.False(t, ok)
	// a closed store ignores further dispatches
	assert.Equal(t, first.Store.State(), first.Store.Dispatch(store.LikePost{ID: "x"}))

	m.Shutdown()
	assert.Zero(t, m.Len())
	_, err = m.Start(context.Background(), 42, entity.Author{ID: "42"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_RequiresIdentity(t *testing.T) {
	m := NewManager(func(uint) Deps { return testDeps(nil) }, testConfig())
	_, err := m.Start(context.Background(), 0, entity.Author{})
	assert.Error(t, err)
	assert.Zero(t, m.Len())
}
