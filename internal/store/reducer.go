package store

import (
	"fmt"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
)

// Reduce returns the state that results from applying a to state. It is pure:
// state is never modified and the result is always a new *State, even when
// the action turns out to be a no-op (a stale fetch result, an unknown id).
func Reduce(state *State, a Action) *State {
	next := *state
	next.Version = state.Version + 1

	switch a := a.(type) {
	case FetchStarted:
		if _, ok := ParseCollection(string(a.Collection)); !ok {
			break
		}
		if a.Generation < state.Load(a.Collection).Generation {
			break
		}
		next.withLoad(a.Collection, LoadState{Phase: PhaseLoading, Loading: true, Generation: a.Generation})

	case FetchFailed:
		if !state.owns(a.Collection, a.Generation) {
			break
		}
		msg := "fetch failed"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		next.withLoad(a.Collection, LoadState{Phase: PhaseError, Generation: a.Generation, Error: msg})

	case SetAlumni:
		if !state.owns(CollectionAlumni, a.Generation) {
			break
		}
		for _, item := range a.Items {
			next.Connections = next.Connections.With(item.ID, item.IsConnected)
		}
		next.Alumni = NewCollection(a.Items)
		next.loaded(CollectionAlumni, a.Generation)

	case SetJobs:
		if !state.owns(CollectionJobs, a.Generation) {
			break
		}
		for _, item := range a.Items {
			next.SavedJobs = next.SavedJobs.With(item.ID, item.IsSaved)
		}
		next.Jobs = NewCollection(a.Items)
		next.loaded(CollectionJobs, a.Generation)

	case SetEvents:
		if !state.owns(CollectionEvents, a.Generation) {
			break
		}
		for _, item := range a.Items {
			next.RegisteredEvents = next.RegisteredEvents.With(item.ID, item.IsRegistered)
		}
		next.Events = NewCollection(a.Items)
		next.loaded(CollectionEvents, a.Generation)

	case SetPosts:
		if !state.owns(CollectionPosts, a.Generation) {
			break
		}
		next.Posts = NewCollection(a.Items)
		next.loaded(CollectionPosts, a.Generation)

	case SetNotifications:
		if !state.owns(CollectionNotifications, a.Generation) {
			break
		}
		next.Notifications = NewCollection(a.Items)
		next.countUnread()
		next.loaded(CollectionNotifications, a.Generation)

	case SetFilter:
		if _, ok := ParseCollection(string(a.Collection)); !ok || !entity.IsFilterKey(a.Key) {
			break
		}
		next.withFilters(a.Collection, state.FiltersFor(a.Collection).With(a.Key, a.Value))

	case ResetFilters:
		if _, ok := ParseCollection(string(a.Collection)); !ok {
			break
		}
		next.withFilters(a.Collection, entity.Filters{})

	case ApplyChange:
		next.applyChange(a.Change)

	case AddPost:
		item := a.Item
		if item.Comments == nil {
			item.Comments = []entity.Comment{}
		}
		next.Posts = next.Posts.Upsert(item)

	case AddJob:
		item := a.Item
		item.IsSaved = next.SavedJobs.Has(item.ID)
		next.Jobs = next.Jobs.Upsert(item)

	case AddEvent:
		item := a.Item
		item.IsRegistered = next.RegisteredEvents.Has(item.ID)
		next.Events = next.Events.Upsert(item)

	case ReplaceItem:
		next.replaceItem(a.Collection, a.ID, a.Item)

	case RemoveItem:
		next.removeItem(a.Collection, a.ID)

	case ToggleMembership:
		next.setMembership(a.Set, a.ID, !state.Membership(a.Set).Has(a.ID))

	case SetMembership:
		next.setMembership(a.Set, a.ID, a.Member)

	case SetMemberships:
		next.replaceMemberships(a.Set, NewIDSet(a.IDs...))

	case LikePost:
		next.Posts, _ = next.Posts.Update(a.ID, func(p entity.Post) entity.Post {
			if p.IsLiked {
				p.Likes = max(p.Likes-1, 0)
			} else {
				p.Likes++
			}
			p.IsLiked = !p.IsLiked
			return p
		})

	case SetPostLikes:
		next.Posts, _ = next.Posts.Update(a.ID, func(p entity.Post) entity.Post {
			p.IsLiked = a.Liked
			p.Likes = max(a.Likes, 0)
			return p
		})

	case AddComment:
		next.Posts = updateComments(next.Posts, a.PostID, func(c Collection[entity.Comment]) Collection[entity.Comment] {
			return c.Append(a.Comment)
		})

	case ReplaceComment:
		next.Posts = updateComments(next.Posts, a.PostID, func(c Collection[entity.Comment]) Collection[entity.Comment] {
			if !c.Has(a.TempID) && !c.Has(a.Comment.ID) {
				return c
			}
			return c.ReplaceID(a.TempID, a.Comment)
		})

	case RemoveComment:
		next.Posts = updateComments(next.Posts, a.PostID, func(c Collection[entity.Comment]) Collection[entity.Comment] {
			return c.Remove(a.CommentID)
		})

	case AddNotification:
		next.Notifications = next.Notifications.Upsert(a.Item)
		next.countUnread()

	case MarkNotificationRead:
		next.Notifications = setRead(next.Notifications, true, a.ID)
		next.countUnread()

	case MarkAllNotificationsRead:
		next.Notifications = setRead(next.Notifications, true, next.Notifications.IDs()...)
		next.countUnread()

	case RestoreUnread:
		next.Notifications = setRead(next.Notifications, false, a.IDs...)
		next.countUnread()

	case ShowToast:
		toast := a.Toast
		next.Toast = &toast

	case DismissToast:
		if state.Toast != nil && state.Toast.ID == a.ID {
			next.Toast = nil
		}

	default:
		panic(fmt.Sprintf("store: unhandled action %T", a))
	}
	return &next
}

func (s *State) owns(c CollectionName, generation uint64) bool {
	load, ok := s.Loads[c]
	return ok && load.Generation == generation
}

func (s *State) loaded(c CollectionName, generation uint64) {
	s.withLoad(c, LoadState{Phase: PhaseLoaded, Generation: generation})
}

// applyChange reconciles a realtime event. INSERT of a known id acts as
// UPDATE, UPDATE of an unknown id is ignored and DELETE of an unknown id is a
// no-op, so replaying any event sequence leaves ids unique and never brings a
// deleted entity back.
func (s *State) applyChange(ch entity.Change) {
	switch ch.EntityType {
	case entity.TypeAlumni:
		s.Alumni = applyChange(s.Alumni, ch, func(a entity.Alumni) entity.Alumni {
			a.IsConnected = s.Connections.Has(a.ID)
			return a
		})
	case entity.TypeJob:
		s.Jobs = applyChange(s.Jobs, ch, func(j entity.Job) entity.Job {
			j.IsSaved = s.SavedJobs.Has(j.ID)
			return j
		})
	case entity.TypeEvent:
		s.Events = applyChange(s.Events, ch, func(e entity.Event) entity.Event {
			e.IsRegistered = s.RegisteredEvents.Has(e.ID)
			return e
		})
	case entity.TypePost:
		posts := s.Posts
		s.Posts = applyChange(posts, ch, func(p entity.Post) entity.Post {
			if cur, ok := posts.Get(p.ID); ok {
				p.Comments = cur.Comments
				p.IsLiked = cur.IsLiked
			} else {
				p.Comments = []entity.Comment{}
				p.IsLiked = false
			}
			return p
		})
	case entity.TypeComment:
		s.Posts = applyCommentChange(s.Posts, ch)
	case entity.TypeNotification:
		s.Notifications = applyChange(s.Notifications, ch, func(n entity.Notification) entity.Notification { return n })
		s.countUnread()
	}
}

func applyChange[T entity.Entity](c Collection[T], ch entity.Change, prepare func(T) T) Collection[T] {
	switch ch.EventType {
	case entity.Insert:
		item, ok := ch.New.(T)
		if !ok {
			return c
		}
		return c.Upsert(prepare(item))
	case entity.Update:
		item, ok := ch.New.(T)
		if !ok {
			return c
		}
		next, _ := c.Replace(prepare(item))
		return next
	case entity.Delete:
		return c.Remove(ch.ID())
	}
	return c
}

func applyCommentChange(posts Collection[entity.Post], ch entity.Change) Collection[entity.Post] {
	comment, ok := ch.New.(entity.Comment)
	if !ok {
		if comment, ok = ch.Old.(entity.Comment); !ok {
			return posts
		}
	}
	postID := comment.PostID
	if postID == "" {
		postID = postWithComment(posts, comment.ID)
	}

	return updateComments(posts, postID, func(c Collection[entity.Comment]) Collection[entity.Comment] {
		switch ch.EventType {
		case entity.Insert:
			return c.Append(comment)
		case entity.Update:
			next, _ := c.Replace(comment)
			return next
		case entity.Delete:
			return c.Remove(comment.ID)
		}
		return c
	})
}

func postWithComment(posts Collection[entity.Post], commentID string) string {
	for _, p := range posts.items {
		for _, c := range p.Comments {
			if c.ID == commentID {
				return p.ID
			}
		}
	}
	return ""
}

// updateComments rewrites the comments of postID. An unknown post is ignored.
func updateComments(posts Collection[entity.Post], postID string, fn func(Collection[entity.Comment]) Collection[entity.Comment]) Collection[entity.Post] {
	next, _ := posts.Update(postID, func(p entity.Post) entity.Post {
		p.Comments = fn(NewCollection(p.Comments)).Items()
		return p
	})
	return next
}

func setRead(c Collection[entity.Notification], read bool, ids ...string) Collection[entity.Notification] {
	for _, id := range ids {
		c, _ = c.Update(id, func(n entity.Notification) entity.Notification {
			n.Read = read
			return n
		})
	}
	return c
}

func (s *State) replaceItem(c CollectionName, id string, item entity.Entity) {
	switch c {
	case CollectionPosts:
		if p, ok := item.(entity.Post); ok {
			if p.Comments == nil {
				p.Comments = []entity.Comment{}
			}
			s.Posts = s.Posts.ReplaceID(id, p)
		}
	case CollectionJobs:
		if j, ok := item.(entity.Job); ok {
			j.IsSaved = s.SavedJobs.Has(j.ID)
			s.Jobs = s.Jobs.ReplaceID(id, j)
		}
	case CollectionEvents:
		if e, ok := item.(entity.Event); ok {
			e.IsRegistered = s.RegisteredEvents.Has(e.ID)
			s.Events = s.Events.ReplaceID(id, e)
		}
	case CollectionAlumni:
		if a, ok := item.(entity.Alumni); ok {
			a.IsConnected = s.Connections.Has(a.ID)
			s.Alumni = s.Alumni.ReplaceID(id, a)
		}
	case CollectionNotifications:
		if n, ok := item.(entity.Notification); ok {
			s.Notifications = s.Notifications.ReplaceID(id, n)
			s.countUnread()
		}
	}
}

func (s *State) removeItem(c CollectionName, id string) {
	switch c {
	case CollectionPosts:
		s.Posts = s.Posts.Remove(id)
	case CollectionJobs:
		s.Jobs = s.Jobs.Remove(id)
	case CollectionEvents:
		s.Events = s.Events.Remove(id)
	case CollectionAlumni:
		s.Alumni = s.Alumni.Remove(id)
	case CollectionNotifications:
		s.Notifications = s.Notifications.Remove(id)
		s.countUnread()
	}
}

// setMembership moves id in or out of set and keeps the entity flag, and for
// events the attendee count, in step with it.
func (s *State) setMembership(set MembershipSet, id string, member bool) {
	s.withMembership(set, s.Membership(set).With(id, member))
	switch set {
	case SavedJobs:
		s.Jobs, _ = s.Jobs.Update(id, func(j entity.Job) entity.Job {
			j.IsSaved = member
			return j
		})
	case RegisteredEvents:
		s.Events, _ = s.Events.Update(id, func(e entity.Event) entity.Event {
			if e.IsRegistered != member {
				if member {
					e.AttendeesCount++
				} else {
					e.AttendeesCount = max(e.AttendeesCount-1, 0)
				}
			}
			e.IsRegistered = member
			return e
		})
	case Connections:
		s.Alumni, _ = s.Alumni.Update(id, func(a entity.Alumni) entity.Alumni {
			a.IsConnected = member
			return a
		})
	}
}

func (s *State) replaceMemberships(set MembershipSet, ids IDSet) {
	s.withMembership(set, ids)
	switch set {
	case SavedJobs:
		s.Jobs = mapItems(s.Jobs, func(j entity.Job) entity.Job {
			j.IsSaved = ids.Has(j.ID)
			return j
		})
	case RegisteredEvents:
		s.Events = mapItems(s.Events, func(e entity.Event) entity.Event {
			e.IsRegistered = ids.Has(e.ID)
			return e
		})
	case Connections:
		s.Alumni = mapItems(s.Alumni, func(a entity.Alumni) entity.Alumni {
			a.IsConnected = ids.Has(a.ID)
			return a
		})
	}
}

func mapItems[T entity.Entity](c Collection[T], fn func(T) T) Collection[T] {
	out := c.Items()
	for i := range out {
		out[i] = fn(out[i])
	}
	return Collection[T]{items: out}
}
