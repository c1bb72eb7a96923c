// Package realtime keeps one shared change subscription per session and fans
// normalized change events out to per-table listeners.
package realtime

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/anonto42/alumni-connect/backend/pkg/metrics"
	"github.com/sirupsen/logrus"
)

var (
	log = logging.NewLogger("realtime")

	errChannelClosed = errors.New("channel closed by backend")
	errTimedOut      = errors.New("subscribe timed out")
)

// State of the shared channel.
type State string

const (
	StateIdle         State = "IDLE"
	StateSubscribing  State = "SUBSCRIBING"
	StateSubscribed   State = "SUBSCRIBED"
	StateChannelError State = "CHANNEL_ERROR"
	StateTimedOut     State = "TIMED_OUT"
)

// Normalizer turns raw feed rows into canonical change events.
type Normalizer interface {
	Change(ctx context.Context, raw entity.RawChange) (entity.Change, error)
}

type Config struct {
	// Tables the shared channel watches.
	Tables           []string
	SubscribeTimeout time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	BackoffFactor    float64
	// Jitter is the +/- fraction applied to every backoff delay.
	Jitter float64
}

func DefaultConfig() Config {
	return Config{
		Tables: []string{
			entity.TablePosts, entity.TableJobs, entity.TableEvents,
			entity.TableUsers, entity.TableComments, entity.TableNotifications,
		},
		SubscribeTimeout: 10 * time.Second,
		BackoffBase:      500 * time.Millisecond,
		BackoffMax:       30 * time.Second,
		BackoffFactor:    2,
		Jitter:           0.2,
	}
}

type listener struct {
	tables map[string]bool
	fn     func(entity.Change)
}

// Manager multiplexes listeners over one Channel. The channel is opened when
// the first listener subscribes and torn down when the last one leaves.
// Listeners live here, not in the channel, so a reconnect never registers
// them twice.
type Manager struct {
	feed       Feed
	normalizer Normalizer
	cfg        Config
	logger     *logrus.Entry

	mu        sync.Mutex
	state     State
	lastErr   error
	listeners map[uint64]*listener
	nextID    uint64
	cancel    context.CancelFunc
	done      chan struct{}
	onState   func(State, error)
}

func NewManager(feed Feed, normalizer Normalizer, cfg Config) *Manager {
	def := DefaultConfig()
	if len(cfg.Tables) == 0 {
		cfg.Tables = def.Tables
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = def.SubscribeTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		cfg.Jitter = def.Jitter
	}
	return &Manager{
		feed:       feed,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     log,
		state:      StateIdle,
		listeners:  make(map[uint64]*listener),
	}
}

// OnStateChange registers a hook called after every state transition.
func (m *Manager) OnStateChange(fn func(State, error)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error behind the last CHANNEL_ERROR or TIMED_OUT state.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Listeners reports how many subscriptions are registered.
func (m *Manager) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Subscribe registers onEvent for changes on tables and returns the function
// that removes exactly this registration. Calling it again is a no-op.
// onEvent runs on the channel goroutine and must not unsubscribe itself
// synchronously.
func (m *Manager) Subscribe(tables []string, onEvent func(entity.Change)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = &listener{tables: wanted(tables), fn: onEvent}
	if len(m.listeners) == 1 && m.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.done = make(chan struct{})
		go m.run(ctx, m.done)
	}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(id) })
	}
}

func (m *Manager) unsubscribe(id uint64) {
	m.mu.Lock()
	delete(m.listeners, id)
	if len(m.listeners) > 0 || m.cancel == nil {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	cancel()
	<-done
	m.idle()
}

// idle reports IDLE unless a new subscriber already restarted the channel.
func (m *Manager) idle() {
	m.mu.Lock()
	restarted := m.cancel != nil
	m.mu.Unlock()
	if !restarted {
		m.setState(StateIdle, nil)
	}
}

// Close drops every listener and tears the channel down.
func (m *Manager) Close() {
	m.mu.Lock()
	m.listeners = make(map[uint64]*listener)
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		m.idle()
	}
}

func (m *Manager) setState(s State, err error) {
	m.mu.Lock()
	m.state = s
	if err != nil {
		m.lastErr = err
	}
	hook := m.onState
	m.mu.Unlock()

	metrics.RealtimeStateTransitions.WithLabelValues(string(s)).Inc()
	if hook != nil {
		hook(s, err)
	}
}

// run owns the channel for one subscribe..teardown lifetime and reconnects
// with exponential backoff after failures.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for attempt := 0; ; attempt++ {
		m.setState(StateSubscribing, nil)
		ch, err := m.open(ctx)
		if ctx.Err() != nil {
			if ch != nil {
				ch.Close()
			}
			return
		}

		if err == nil {
			attempt = 0
			m.setState(StateSubscribed, nil)
			err = m.consume(ctx, ch)
			ch.Close()
			if ctx.Err() != nil {
				return
			}
			m.fail(StateChannelError, err)
		} else if errors.Is(err, errTimedOut) {
			m.fail(StateTimedOut, err)
		} else {
			m.fail(StateChannelError, err)
		}

		delay := m.backoff(attempt)
		m.logger.WithFields(logrus.Fields{"attempt": attempt + 1, "delay": delay}).Info("reconnecting realtime channel")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (m *Manager) fail(s State, err error) {
	appErr := apperrors.RealtimeChannel(string(s), err)
	m.logger.WithError(err).WithField("state", s).Warn("realtime channel unavailable, relying on refetch")
	m.setState(s, appErr)
}

// open subscribes with the configured deadline. On timeout the pending Open
// is cancelled and any channel it still returns is closed.
func (m *Manager) open(ctx context.Context) (Channel, error) {
	chCtx, chCancel := context.WithCancel(ctx)
	type result struct {
		ch  Channel
		err error
	}
	res := make(chan result, 1)
	go func() {
		ch, err := m.feed.Open(chCtx, m.cfg.Tables)
		res <- result{ch, err}
	}()

	timer := time.NewTimer(m.cfg.SubscribeTimeout)
	defer timer.Stop()

	select {
	case r := <-res:
		if r.err != nil {
			chCancel()
			return nil, r.err
		}
		return &ownedChannel{Channel: r.ch, cancel: chCancel}, nil
	case <-timer.C:
		chCancel()
		go func() {
			if r := <-res; r.ch != nil {
				r.ch.Close()
			}
		}()
		return nil, errTimedOut
	case <-ctx.Done():
		chCancel()
		go func() {
			if r := <-res; r.ch != nil {
				r.ch.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// ownedChannel also releases the context the channel was opened with.
type ownedChannel struct {
	Channel
	cancel context.CancelFunc
}

func (c *ownedChannel) Close() error {
	err := c.Channel.Close()
	c.cancel()
	return err
}

// consume delivers events until the channel ends and returns why it ended.
func (m *Manager) consume(ctx context.Context, ch Channel) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch.Events():
			if !ok {
				if err := ch.Err(); err != nil {
					return err
				}
				return errChannelClosed
			}
			m.deliver(ctx, raw)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, raw entity.RawChange) {
	change, err := m.normalizer.Change(ctx, raw)
	if err != nil {
		metrics.RealtimeEventsTotal.WithLabelValues(raw.Table, "dropped").Inc()
		m.logger.WithError(err).WithField("table", raw.Table).Warn("dropping malformed change event")
		return
	}
	metrics.RealtimeEventsTotal.WithLabelValues(raw.Table, "delivered").Inc()

	m.mu.Lock()
	targets := make([]func(entity.Change), 0, len(m.listeners))
	for _, l := range m.listeners {
		if l.tables[raw.Table] {
			targets = append(targets, l.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range targets {
		fn(change)
	}
}

// backoff returns base*factor^attempt capped at max, with +/- jitter.
func (m *Manager) backoff(attempt int) time.Duration {
	d := float64(m.cfg.BackoffBase) * math.Pow(m.cfg.BackoffFactor, float64(attempt))
	if d > float64(m.cfg.BackoffMax) {
		d = float64(m.cfg.BackoffMax)
	}
	if m.cfg.Jitter > 0 {
		d *= 1 + m.cfg.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}
