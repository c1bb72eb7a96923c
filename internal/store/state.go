package store

import (
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
)

// CollectionName identifies one of the collections held by the store.
type CollectionName string

const (
	CollectionAlumni        CollectionName = "alumni"
	CollectionJobs          CollectionName = "jobs"
	CollectionEvents        CollectionName = "events"
	CollectionPosts         CollectionName = "posts"
	CollectionNotifications CollectionName = "notifications"
)

// Collections lists every collection in a stable order.
var Collections = []CollectionName{
	CollectionAlumni, CollectionJobs, CollectionEvents, CollectionPosts, CollectionNotifications,
}

// ParseCollection validates a collection name coming from a request path.
func ParseCollection(s string) (CollectionName, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// MembershipSet names one of the viewer's relationship sets.
type MembershipSet string

const (
	SavedJobs        MembershipSet = "savedJobs"
	RegisteredEvents MembershipSet = "registeredEvents"
	Connections      MembershipSet = "connections"
)

var MembershipSets = []MembershipSet{SavedJobs, RegisteredEvents, Connections}

// Phase is the fetch lifecycle of one collection.
type Phase string

const (
	PhaseInitial Phase = "INITIAL"
	PhaseLoading Phase = "LOADING"
	PhaseLoaded  Phase = "LOADED"
	PhaseError   Phase = "ERROR"
)

// LoadState tracks the fetch owning a collection. Loading is true exactly
// while the fetch tagged with Generation is in flight.
type LoadState struct {
	Phase      Phase  `json:"phase"`
	Loading    bool   `json:"loading"`
	Generation uint64 `json:"generation"`
	Error      string `json:"error,omitempty"`
}

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

type Toast struct {
	ID        string    `json:"id"`
	Kind      ToastKind `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is one immutable snapshot of a session. The reducer never modifies a
// State it was given; maps are copied before they change.
type State struct {
	Alumni        Collection[entity.Alumni]       `json:"alumni"`
	Jobs          Collection[entity.Job]          `json:"jobs"`
	Events        Collection[entity.Event]        `json:"events"`
	Posts         Collection[entity.Post]         `json:"posts"`
	Notifications Collection[entity.Notification] `json:"notifications"`

	Filters map[CollectionName]entity.Filters `json:"filters"`
	Loads   map[CollectionName]LoadState      `json:"loads"`

	SavedJobs        IDSet `json:"savedJobs"`
	RegisteredEvents IDSet `json:"registeredEvents"`
	Connections      IDSet `json:"connections"`

	UnreadCount int    `json:"unreadCount"`
	Toast       *Toast `json:"toast,omitempty"`

	// Version increases by one per reduced action.
	Version uint64 `json:"version"`
}

// NewState returns the empty snapshot a session starts with.
func NewState() *State {
	s := &State{
		Filters:          make(map[CollectionName]entity.Filters, len(Collections)),
		Loads:            make(map[CollectionName]LoadState, len(Collections)),
		SavedJobs:        NewIDSet(),
		RegisteredEvents: NewIDSet(),
		Connections:      NewIDSet(),
	}
	for _, c := range Collections {
		s.Filters[c] = entity.Filters{}
		s.Loads[c] = LoadState{Phase: PhaseInitial}
	}
	return s
}

func (s *State) Load(c CollectionName) LoadState {
	return s.Loads[c]
}

func (s *State) FiltersFor(c CollectionName) entity.Filters {
	return s.Filters[c]
}

func (s *State) Membership(set MembershipSet) IDSet {
	switch set {
	case SavedJobs:
		return s.SavedJobs
	case RegisteredEvents:
		return s.RegisteredEvents
	case Connections:
		return s.Connections
	}
	return IDSet{}
}

func (s *State) withLoad(c CollectionName, load LoadState) {
	next := make(map[CollectionName]LoadState, len(s.Loads))
	for k, v := range s.Loads {
		next[k] = v
	}
	next[c] = load
	s.Loads = next
}

func (s *State) withFilters(c CollectionName, f entity.Filters) {
	next := make(map[CollectionName]entity.Filters, len(s.Filters))
	for k, v := range s.Filters {
		next[k] = v
	}
	next[c] = f
	s.Filters = next
}

func (s *State) withMembership(set MembershipSet, ids IDSet) {
	switch set {
	case SavedJobs:
		s.SavedJobs = ids
	case RegisteredEvents:
		s.RegisteredEvents = ids
	case Connections:
		s.Connections = ids
	}
}

func (s *State) countUnread() {
	unread := 0
	for _, n := range s.Notifications.items {
		if !n.Read {
			unread++
		}
	}
	s.UnreadCount = unread
}
