// Package refetch reloads collections when their filters change, on retry and
// on a periodic schedule, making sure only the newest fetch per collection
// ever lands in the store.
package refetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/store"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/anonto42/alumni-connect/backend/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logging.NewLogger("refetch")

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultRefresh  = "@every 5m"
)

// Loader fetches one collection and builds the action that stores the result
// under generation.
type Loader func(ctx context.Context, filters entity.Filters, generation uint64) (store.Action, error)

// Bind adapts a typed fetcher to a Loader.
func Bind[T entity.Entity](f fetchers.Fetcher[T], set func(generation uint64, items []T) store.Action) Loader {
	return func(ctx context.Context, filters entity.Filters, generation uint64) (store.Action, error) {
		res := f.Fetch(ctx, filters)
		if res.Err != nil {
			return nil, res.Err
		}
		return set(generation, res.Data), nil
	}
}

// Fetchers groups the per-collection fetchers of a session.
type Fetchers struct {
	Alumni        fetchers.Fetcher[entity.Alumni]
	Jobs          fetchers.Fetcher[entity.Job]
	Events        fetchers.Fetcher[entity.Event]
	Posts         fetchers.Fetcher[entity.Post]
	Notifications fetchers.Fetcher[entity.Notification]
}

// Loaders binds every non-nil fetcher to its collection.
func (f Fetchers) Loaders() map[store.CollectionName]Loader {
	out := make(map[store.CollectionName]Loader, len(store.Collections))
	if f.Alumni != nil {
		out[store.CollectionAlumni] = Bind(f.Alumni, func(g uint64, items []entity.Alumni) store.Action {
			return store.SetAlumni{Generation: g, Items: items}
		})
	}
	if f.Jobs != nil {
		out[store.CollectionJobs] = Bind(f.Jobs, func(g uint64, items []entity.Job) store.Action {
			return store.SetJobs{Generation: g, Items: items}
		})
	}
	if f.Events != nil {
		out[store.CollectionEvents] = Bind(f.Events, func(g uint64, items []entity.Event) store.Action {
			return store.SetEvents{Generation: g, Items: items}
		})
	}
	if f.Posts != nil {
		out[store.CollectionPosts] = Bind(f.Posts, func(g uint64, items []entity.Post) store.Action {
			return store.SetPosts{Generation: g, Items: items}
		})
	}
	if f.Notifications != nil {
		out[store.CollectionNotifications] = Bind(f.Notifications, func(g uint64, items []entity.Notification) store.Action {
			return store.SetNotifications{Generation: g, Items: items}
		})
	}
	return out
}

type Config struct {
	// Debounce is the quiet interval before a search change fetches.
	Debounce time.Duration
	// Refresh is the cron spec of the periodic bulk refetch. Empty disables it.
	Refresh string
}

func DefaultConfig() Config {
	return Config{Debounce: DefaultDebounce, Refresh: DefaultRefresh}
}

// Loop owns the fetch lifecycle of every collection in one store.
type Loop struct {
	store     *store.Store
	loaders   map[store.CollectionName]Loader
	scheduler *Scheduler
	cfg       Config
	cron      *cron.Cron
	logger    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	generations map[store.CollectionName]uint64
	inFlight    map[store.CollectionName]context.CancelFunc
	closed      bool
}

func NewLoop(s *store.Store, loaders map[store.CollectionName]Loader, cfg Config) *Loop {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		store:       s,
		loaders:     loaders,
		scheduler:   NewScheduler(),
		cfg:         cfg,
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
		generations: make(map[store.CollectionName]uint64, len(loaders)),
		inFlight:    make(map[store.CollectionName]context.CancelFunc, len(loaders)),
	}
}

func searchKey(c store.CollectionName) string {
	return string(c) + ":" + entity.FilterSearch
}

func (l *Loop) check(c store.CollectionName) error {
	if _, ok := l.loaders[c]; !ok {
		return apperrors.Validation("collection", fmt.Sprintf("%q is not loadable", c))
	}
	return nil
}

// SetFilter stores the filter at once. A search change supersedes the fetch
// in flight right away and fetches after the debounce interval; any other key
// fetches immediately and drops a pending search fetch, whose value the new
// fetch already carries.
func (l *Loop) SetFilter(c store.CollectionName, key, value string) error {
	if err := l.check(c); err != nil {
		return err
	}
	if !entity.IsFilterKey(key) {
		return apperrors.Validation("filter", fmt.Sprintf("unknown key %q", key))
	}

	before := l.store.State().FiltersFor(c)
	after := l.store.Dispatch(store.SetFilter{Collection: c, Key: key, Value: value}).FiltersFor(c)
	if before.Equal(after) {
		return nil
	}

	if key == entity.FilterSearch {
		l.supersede(c)
		l.scheduler.Schedule(searchKey(c), l.cfg.Debounce, func() { l.trigger(c) })
		return nil
	}
	l.scheduler.Cancel(searchKey(c))
	l.trigger(c)
	return nil
}

func (l *Loop) ResetFilters(c store.CollectionName) error {
	if err := l.check(c); err != nil {
		return err
	}
	l.store.Dispatch(store.ResetFilters{Collection: c})
	l.scheduler.Cancel(searchKey(c))
	l.trigger(c)
	return nil
}

// Retry reloads c with its current filters, typically from the ERROR phase.
func (l *Loop) Retry(c store.CollectionName) error {
	if err := l.check(c); err != nil {
		return err
	}
	l.trigger(c)
	return nil
}

// RefreshAll reloads every collection without waiting for the results.
func (l *Loop) RefreshAll() {
	for _, c := range store.Collections {
		if _, ok := l.loaders[c]; ok {
			l.trigger(c)
		}
	}
}

// LoadAll loads every collection in parallel and waits for all of them. It
// returns the first fetch error; the failed collections are also in ERROR.
func (l *Loop) LoadAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range store.Collections {
		if _, ok := l.loaders[c]; !ok {
			continue
		}
		done := l.trigger(c)
		g.Go(func() error {
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

// Start begins the periodic bulk refetch.
func (l *Loop) Start() error {
	if l.cfg.Refresh == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(l.cfg.Refresh, func() {
		l.logger.Debug("periodic refetch")
		l.RefreshAll()
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	c.Start()
	l.cron = c
	return nil
}

// Generation reports the newest generation issued for c.
func (l *Loop) Generation(c store.CollectionName) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generations[c]
}

// nextGeneration issues a new generation for c and cancels the fetch in
// flight, if any. Callers hold mu.
func (l *Loop) nextGeneration(c store.CollectionName) (gen uint64, cancelled bool) {
	l.generations[c]++
	if cancel, ok := l.inFlight[c]; ok {
		cancel()
		delete(l.inFlight, c)
		cancelled = true
	}
	return l.generations[c], cancelled
}

// supersede retires the fetch in flight for c without starting another one.
// The store keeps the loading flag, now owned by the new generation, so the
// retired result cannot land while a debounced fetch is pending.
func (l *Loop) supersede(c store.CollectionName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if gen, cancelled := l.nextGeneration(c); cancelled {
		l.store.Dispatch(store.FetchStarted{Collection: c, Generation: gen})
	}
}

// trigger supersedes whatever fetch c has in flight with a new generation.
// The returned channel yields the fetch error (nil when the result was
// stored or discarded as stale) once it settles.
func (l *Loop) trigger(c store.CollectionName) <-chan error {
	done := make(chan error, 1)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		done <- nil
		return done
	}
	gen, _ := l.nextGeneration(c)
	ctx, cancel := context.WithCancel(l.ctx)
	l.inFlight[c] = cancel
	// dispatched under mu so FetchStarted reaches the store in generation order
	l.store.Dispatch(store.FetchStarted{Collection: c, Generation: gen})
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		done <- l.fetch(ctx, cancel, c, gen)
	}()
	return done
}

func (l *Loop) fetch(ctx context.Context, cancel context.CancelFunc, c store.CollectionName, gen uint64) error {
	defer cancel()
	logger := l.logger.WithFields(logrus.Fields{"collection": c, "generation": gen})

	// filters are read at fire time so a debounced fetch sees the latest value
	filters := l.store.State().FiltersFor(c)
	start := time.Now()
	action, err := l.loaders[c](ctx, filters, gen)
	metrics.FetchDurationSeconds.WithLabelValues(string(c)).Observe(time.Since(start).Seconds())

	l.mu.Lock()
	current := l.generations[c]
	if current == gen {
		delete(l.inFlight, c)
	}
	l.mu.Unlock()

	if l.ctx.Err() != nil {
		return nil
	}
	if gen != current {
		stale := apperrors.StaleWrite(string(c), gen, current)
		logger.WithError(stale).Debug("discarding superseded fetch")
		metrics.FetchesTotal.WithLabelValues(string(c), "stale").Inc()
		return nil
	}
	if err != nil {
		logger.WithError(err).Warn("fetch failed")
		metrics.FetchesTotal.WithLabelValues(string(c), "error").Inc()
		l.store.Dispatch(store.FetchFailed{Collection: c, Generation: gen, Err: err})
		return err
	}
	metrics.FetchesTotal.WithLabelValues(string(c), "ok").Inc()
	l.store.Dispatch(action)
	return nil
}

// Close stops the cron, pending debounced fetches and in-flight fetches, and
// waits for the fetch goroutines to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	cr := l.cron
	l.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	l.scheduler.Close()
	l.cancel()
	l.wg.Wait()
}
