package store

import "github.com/anonto42/alumni-connect/backend/internal/entity"

// Action is the closed set of state transitions. The unexported marker keeps
// implementations inside this package, and Reduce handles every one of them.
type Action interface {
	Kind() string
	action()
}

// FetchStarted marks the fetch for Generation as the owner of the collection's
// loading flag.
type FetchStarted struct {
	Collection CollectionName
	Generation uint64
}

// FetchFailed ends the fetch for Generation with an error.
type FetchFailed struct {
	Collection CollectionName
	Generation uint64
	Err        error
}

// SetAlumni and its siblings replace a collection with a fetch result. They
// are ignored unless Generation is the collection's current generation.
type SetAlumni struct {
	Generation uint64
	Items      []entity.Alumni
}

type SetJobs struct {
	Generation uint64
	Items      []entity.Job
}

type SetEvents struct {
	Generation uint64
	Items      []entity.Event
}

type SetPosts struct {
	Generation uint64
	Items      []entity.Post
}

type SetNotifications struct {
	Generation uint64
	Items      []entity.Notification
}

// SetFilter sets one filter key. Empty or "all" clears it.
type SetFilter struct {
	Collection CollectionName
	Key        string
	Value      string
}

type ResetFilters struct {
	Collection CollectionName
}

// ApplyChange reconciles a realtime change event.
type ApplyChange struct {
	Change entity.Change
}

type AddPost struct{ Item entity.Post }
type AddJob struct{ Item entity.Job }
type AddEvent struct{ Item entity.Event }

// ReplaceItem swaps an optimistic entity stored under ID for the server's.
type ReplaceItem struct {
	Collection CollectionName
	ID         string
	Item       entity.Entity
}

type RemoveItem struct {
	Collection CollectionName
	ID         string
}

// ToggleMembership flips ID in Set along with the matching entity flag.
type ToggleMembership struct {
	Set MembershipSet
	ID  string
}

// SetMembership forces ID's membership, used to reconcile and roll back.
type SetMembership struct {
	Set    MembershipSet
	ID     string
	Member bool
}

// SetMemberships replaces a whole set, used on session start.
type SetMemberships struct {
	Set MembershipSet
	IDs []string
}

// LikePost flips the viewer's like and moves the count by one.
type LikePost struct{ ID string }

// SetPostLikes forces the like state and count of a post.
type SetPostLikes struct {
	ID    string
	Liked bool
	Likes int
}

type AddComment struct {
	PostID  string
	Comment entity.Comment
}

type ReplaceComment struct {
	PostID  string
	TempID  string
	Comment entity.Comment
}

type RemoveComment struct {
	PostID    string
	CommentID string
}

type AddNotification struct{ Item entity.Notification }

type MarkNotificationRead struct{ ID string }

type MarkAllNotificationsRead struct{}

// RestoreUnread marks notifications unread again after a failed read mutation.
type RestoreUnread struct{ IDs []string }

type ShowToast struct{ Toast Toast }

// DismissToast clears the toast only when ID is still the live one.
type DismissToast struct{ ID string }

func (FetchStarted) Kind() string             { return "FETCH_STARTED" }
func (FetchFailed) Kind() string              { return "FETCH_FAILED" }
func (SetAlumni) Kind() string                { return "SET_ALUMNI" }
func (SetJobs) Kind() string                  { return "SET_JOBS" }
func (SetEvents) Kind() string                { return "SET_EVENTS" }
func (SetPosts) Kind() string                 { return "SET_POSTS" }
func (SetNotifications) Kind() string         { return "SET_NOTIFICATIONS" }
func (SetFilter) Kind() string                { return "SET_FILTER" }
func (ResetFilters) Kind() string             { return "RESET_FILTERS" }
func (ApplyChange) Kind() string              { return "APPLY_CHANGE" }
func (AddPost) Kind() string                  { return "ADD_POST" }
func (AddJob) Kind() string                   { return "ADD_JOB" }
func (AddEvent) Kind() string                 { return "ADD_EVENT" }
func (ReplaceItem) Kind() string              { return "REPLACE_ITEM" }
func (RemoveItem) Kind() string               { return "REMOVE_ITEM" }
func (ToggleMembership) Kind() string         { return "TOGGLE_MEMBERSHIP" }
func (SetMembership) Kind() string            { return "SET_MEMBERSHIP" }
func (SetMemberships) Kind() string           { return "SET_MEMBERSHIPS" }
func (LikePost) Kind() string                 { return "LIKE_POST" }
func (SetPostLikes) Kind() string             { return "SET_POST_LIKES" }
func (AddComment) Kind() string               { return "ADD_COMMENT" }
func (ReplaceComment) Kind() string           { return "REPLACE_COMMENT" }
func (RemoveComment) Kind() string            { return "REMOVE_COMMENT" }
func (AddNotification) Kind() string          { return "ADD_NOTIFICATION" }
func (MarkNotificationRead) Kind() string     { return "MARK_NOTIFICATION_READ" }
func (MarkAllNotificationsRead) Kind() string { return "MARK_ALL_NOTIFICATIONS_READ" }
func (RestoreUnread) Kind() string            { return "RESTORE_UNREAD" }
func (ShowToast) Kind() string                { return "SHOW_TOAST" }
func (DismissToast) Kind() string             { return "DISMISS_TOAST" }

func (FetchStarted) action()             {}
func (FetchFailed) action()              {}
func (SetAlumni) action()                {}
func (SetJobs) action()                  {}
func (SetEvents) action()                {}
func (SetPosts) action()                 {}
func (SetNotifications) action()         {}
func (SetFilter) action()                {}
func (ResetFilters) action()             {}
func (ApplyChange) action()              {}
func (AddPost) action()                  {}
func (AddJob) action()                   {}
func (AddEvent) action()                 {}
func (ReplaceItem) action()              {}
func (RemoveItem) action()               {}
func (ToggleMembership) action()         {}
func (SetMembership) action()            {}
func (SetMemberships) action()           {}
func (LikePost) action()                 {}
func (SetPostLikes) action()             {}
func (AddComment) action()               {}
func (ReplaceComment) action()           {}
func (RemoveComment) action()            {}
func (AddNotification) action()          {}
func (MarkNotificationRead) action()     {}
func (MarkAllNotificationsRead) action() {}
func (RestoreUnread) action()            {}
func (ShowToast) action()                {}
func (DismissToast) action()             {}

// AllKinds holds one zero value of every action. The reducer tests walk it to
// prove no kind is left unhandled.
var AllKinds = []Action{
	FetchStarted{}, FetchFailed{},
	SetAlumni{}, SetJobs{}, SetEvents{}, SetPosts{}, SetNotifications{},
	SetFilter{}, ResetFilters{},
	ApplyChange{},
	AddPost{}, AddJob{}, AddEvent{}, ReplaceItem{}, RemoveItem{},
	ToggleMembership{}, SetMembership{}, SetMemberships{},
	LikePost{}, SetPostLikes{},
	AddComment{}, ReplaceComment{}, RemoveComment{},
	AddNotification{}, MarkNotificationRead{}, MarkAllNotificationsRead{}, RestoreUnread{},
	ShowToast{}, DismissToast{},
}
