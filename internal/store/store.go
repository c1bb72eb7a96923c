// Package store holds the single authoritative snapshot of a session and the
// pure reducer that is the only way to change it.
package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/anonto42/alumni-connect/backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultToastTTL is how long a toast stays up before it is dismissed.
const DefaultToastTTL = 3 * time.Second

// Listener observes every dispatched action together with the state it
// produced. Listeners run synchronously in dispatch order and must not call
// Dispatch themselves; hand work to a goroutine or channel instead.
type Listener func(action Action, state *State)

// Store serializes all writes to one State through Reduce.
type Store struct {
	mu       sync.Mutex // held while reducing
	notifyMu sync.Mutex // held while listeners run, keeps notification order
	state    atomic.Pointer[State]

	listenersMu sync.Mutex
	listeners   map[uint64]Listener
	nextID      uint64

	toastMu    sync.Mutex
	toastTTL   time.Duration
	toastTimer *time.Timer

	closed atomic.Bool
	logger *logrus.Entry
}

type Option func(*Store)

// WithToastTTL overrides DefaultToastTTL.
func WithToastTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.toastTTL = ttl
		}
	}
}

// WithInitialState starts the store from state instead of NewState.
func WithInitialState(state *State) Option {
	return func(s *Store) {
		if state != nil {
			s.state.Store(state)
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		listeners: make(map[uint64]Listener),
		toastTTL:  DefaultToastTTL,
		logger:    logging.NewLogger("store"),
	}
	s.state.Store(NewState())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot. Callers must treat it as read-only.
func (s *Store) State() *State {
	return s.state.Load()
}

// Dispatch reduces action into a new snapshot, publishes it and notifies the
// listeners. After Close it is a no-op returning the last snapshot.
func (s *Store) Dispatch(action Action) *State {
	if s.closed.Load() {
		s.logger.WithField("action", action.Kind()).Debug("dispatch after close ignored")
		return s.State()
	}

	s.mu.Lock()
	next := Reduce(s.state.Load(), action)
	s.state.Store(next)
	// Take notifyMu before releasing mu so listeners see actions in the
	// order they were reduced.
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	metrics.ActionsTotal.WithLabelValues(action.Kind()).Inc()
	for _, l := range s.snapshotListeners() {
		l(action, next)
	}
	return next
}

// Subscribe registers l and returns a function that removes it. The returned
// function is safe to call more than once.
func (s *Store) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Store) snapshotListeners() []Listener {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}

// ShowToast displays a toast and arms the single auto-dismiss timer. A newer
// toast stops the pending timer, so only the latest toast's timer is live.
func (s *Store) ShowToast(kind ToastKind, message string) Toast {
	toast := Toast{ID: uuid.NewString(), Kind: kind, Message: message, CreatedAt: time.Now()}

	s.toastMu.Lock()
	defer s.toastMu.Unlock()
	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	s.Dispatch(ShowToast{Toast: toast})
	s.toastTimer = time.AfterFunc(s.toastTTL, func() {
		s.Dispatch(DismissToast{ID: toast.ID})
	})
	return toast
}

// Close stops the toast timer and drops every listener.
func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.toastMu.Lock()
	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	s.toastMu.Unlock()

	s.listenersMu.Lock()
	s.listeners = make(map[uint64]Listener)
	s.listenersMu.Unlock()
}
