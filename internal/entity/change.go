package entity

// EventType is the kind of row change delivered by the change feed.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Valid reports whether t is one of the three known change kinds.
func (t EventType) Valid() bool {
	switch t {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// Change is a normalized change event. New is nil for DELETE; Old carries at
// least the id for DELETE and may be nil otherwise.
type Change struct {
	EventType  EventType `json:"eventType"`
	EntityType Type      `json:"entityType"`
	New        Entity    `json:"new"`
	Old        Entity    `json:"old"`
}

// ID returns the id of the entity the change refers to.
func (c Change) ID() string {
	if c.New != nil {
		return c.New.EntityID()
	}
	if c.Old != nil {
		return c.Old.EntityID()
	}
	return ""
}

// RawChange is a change event as the backend change feed delivers it: rows
// keyed by storage column names.
type RawChange struct {
	EventType EventType      `json:"eventType"`
	Table     string         `json:"table"`
	New       map[string]any `json:"new"`
	Old       map[string]any `json:"old"`
}

// Tables watched by the change feed.
const (
	TableUsers         = "users"
	TableJobs          = "jobs"
	TableEvents        = "events"
	TablePosts         = "posts"
	TableComments      = "comments"
	TableNotifications = "notifications"
)

// TypeForTable maps a backend table to the entity type its rows normalize to.
func TypeForTable(table string) (Type, bool) {
	switch table {
	case TableUsers:
		return TypeAlumni, true
	case TableJobs:
		return TypeJob, true
	case TableEvents:
		return TypeEvent, true
	case TablePosts:
		return TypePost, true
	case TableComments:
		return TypeComment, true
	case TableNotifications:
		return TypeNotification, true
	}
	return "", false
}
