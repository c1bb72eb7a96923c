// Package session is the composition root of the sync core: it builds one
// store per signed-in user and wires the fetchers, the realtime channel and
// the optimistic applier to it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/optimistic"
	"github.com/anonto42/alumni-connect/backend/internal/realtime"
	"github.com/anonto42/alumni-connect/backend/internal/refetch"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/internal/store"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logging.NewLogger("session")

// DataTables are the tables whose changes are applied to every session.
var DataTables = []string{
	entity.TablePosts, entity.TableJobs, entity.TableEvents,
	entity.TableUsers, entity.TableComments,
}

// MemberLister lists the ids of one of the viewer's membership sets.
type MemberLister interface {
	MemberIDs(ctx context.Context, userID uint) ([]string, error)
}

// Deps are the collaborators a session is built from.
type Deps struct {
	Fetchers   refetch.Fetchers
	Backend    optimistic.Backend
	Feed       realtime.Feed
	Normalizer realtime.Normalizer
	// Memberships seeds the membership sets on start.
	Memberships map[store.MembershipSet]MemberLister
}

type Config struct {
	ToastTTL time.Duration
	Realtime realtime.Config
	Refetch  refetch.Config
}

// Session is everything that lives between sign-in and sign-out of one user.
type Session struct {
	ID        string
	UserID    uint
	Viewer    entity.Author
	StartedAt time.Time

	Store    *store.Store
	Realtime *realtime.Manager
	Applier  *optimistic.Applier
	Loop     *refetch.Loop

	logger      *logrus.Entry
	unsubscribe []func()
	done        chan struct{}
	closeOnce   sync.Once
}

// New builds a session and subscribes it to the change feed. It does not
// load anything; see Start.
func New(userID uint, viewer entity.Author, deps Deps, cfg Config) *Session {
	st := store.New(store.WithToastTTL(cfg.ToastTTL))
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Viewer:    viewer,
		StartedAt: time.Now(),
		Store:     st,
		Applier:   optimistic.New(st, deps.Backend, userID, viewer),
		Loop:      refetch.NewLoop(st, deps.Fetchers.Loaders(), cfg.Refetch),
		done:      make(chan struct{}),
	}
	s.logger = log.WithFields(logrus.Fields{"session_id": s.ID, "user_id": userID})

	if deps.Feed != nil {
		s.Realtime = realtime.NewManager(deps.Feed, deps.Normalizer, cfg.Realtime)
		s.Realtime.OnStateChange(func(state realtime.State, err error) {
			s.logger.WithError(err).WithField("state", state).Debug("realtime state changed")
		})
		s.unsubscribe = append(s.unsubscribe,
			s.Realtime.Subscribe(DataTables, s.applyChange),
			s.Realtime.Subscribe([]string{entity.TableNotifications}, s.applyNotification),
		)
	} else {
		s.logger.Warn("no change feed configured, relying on periodic refetch")
	}
	return s
}

// Start seeds the membership sets, loads every collection and starts the
// periodic refresh. Load failures leave the affected collections in ERROR and
// are not returned.
func (s *Session) Start(ctx context.Context, memberships map[store.MembershipSet]MemberLister) error {
	for set, lister := range memberships {
		ids, err := lister.MemberIDs(ctx, s.UserID)
		if err != nil {
			s.logger.WithError(err).WithField("set", set).Warn("failed to load membership set")
			continue
		}
		s.Store.Dispatch(store.SetMemberships{Set: set, IDs: ids})
	}

	if err := s.Loop.LoadAll(ctx); err != nil {
		s.logger.WithError(err).Warn("initial load incomplete")
	}
	return s.Loop.Start()
}

func (s *Session) applyChange(c entity.Change) {
	s.Store.Dispatch(store.ApplyChange{Change: c})
}

// applyNotification applies notification changes addressed to this user and
// announces new ones.
func (s *Session) applyNotification(c entity.Change) {
	if !s.ForViewer(c) {
		return
	}
	s.Store.Dispatch(store.ApplyChange{Change: c})
	if n, ok := c.New.(entity.Notification); ok && c.EventType == entity.Insert {
		s.Store.ShowToast(store.ToastInfo, n.Message)
	}
}

// ForViewer reports whether a notification change concerns this session's
// user. Changes of other types and deletes carrying only an id pass.
func (s *Session) ForViewer(c entity.Change) bool {
	n, ok := c.New.(entity.Notification)
	return !ok || n.RecipientID == repositories.FormatID(s.UserID)
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, unsubscribe := range s.unsubscribe {
			unsubscribe()
		}
		if s.Realtime != nil {
			s.Realtime.Close()
		}
		s.Loop.Close()
		s.Store.Close()
		close(s.done)
		s.logger.Info("session closed")
	})
}
