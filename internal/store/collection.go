package store

import (
	"encoding/json"
	"sort"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
)

// Collection is an ordered, id-unique, immutable list of entities. Every
// operation returns a new Collection and leaves the receiver untouched.
type Collection[T entity.Entity] struct {
	items []T
}

// NewCollection builds a collection from items, keeping the first occurrence
// of every id.
func NewCollection[T entity.Entity](items []T) Collection[T] {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.EntityID()]; dup {
			continue
		}
		seen[item.EntityID()] = struct{}{}
		out = append(out, item)
	}
	return Collection[T]{items: out}
}

func (c Collection[T]) Len() int { return len(c.items) }

// Items returns a copy of the entities in order.
func (c Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c Collection[T]) IDs() []string {
	out := make([]string, len(c.items))
	for i, item := range c.items {
		out[i] = item.EntityID()
	}
	return out
}

func (c Collection[T]) index(id string) int {
	for i, item := range c.items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

func (c Collection[T]) Has(id string) bool { return c.index(id) >= 0 }

func (c Collection[T]) Get(id string) (T, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Upsert prepends item when its id is absent and replaces it in place otherwise.
func (c Collection[T]) Upsert(item T) Collection[T] {
	if next, ok := c.Replace(item); ok {
		return next
	}
	out := make([]T, 0, len(c.items)+1)
	out = append(out, item)
	out = append(out, c.items...)
	return Collection[T]{items: out}
}

// Append adds item at the end when its id is absent and replaces it otherwise.
func (c Collection[T]) Append(item T) Collection[T] {
	if next, ok := c.Replace(item); ok {
		return next
	}
	out := make([]T, 0, len(c.items)+1)
	out = append(out, c.items...)
	out = append(out, item)
	return Collection[T]{items: out}
}

// Replace swaps the entity with item's id. The bool is false when the id is absent.
func (c Collection[T]) Replace(item T) (Collection[T], bool) {
	return c.Update(item.EntityID(), func(T) T { return item })
}

// Update applies fn to the entity with id. The bool is false when the id is absent.
func (c Collection[T]) Update(id string, fn func(T) T) (Collection[T], bool) {
	i := c.index(id)
	if i < 0 {
		return c, false
	}
	out := c.Items()
	out[i] = fn(out[i])
	return Collection[T]{items: out}, true
}

// Remove drops the entity with id. Removing an absent id returns c unchanged.
func (c Collection[T]) Remove(id string) Collection[T] {
	i := c.index(id)
	if i < 0 {
		return c
	}
	out := make([]T, 0, len(c.items)-1)
	out = append(out, c.items[:i]...)
	out = append(out, c.items[i+1:]...)
	return Collection[T]{items: out}
}

// ReplaceID swaps the entity stored under oldID for item, which usually
// carries a different id. If item's id is already present the oldID entry is
// dropped and the existing entry is replaced, so the id stays unique.
func (c Collection[T]) ReplaceID(oldID string, item T) Collection[T] {
	if item.EntityID() != oldID && c.Has(item.EntityID()) {
		next, _ := c.Remove(oldID).Replace(item)
		return next
	}
	if next, ok := c.Update(oldID, func(T) T { return item }); ok {
		return next
	}
	return c.Upsert(item)
}

func (c Collection[T]) MarshalJSON() ([]byte, error) {
	if c.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.items)
}

// IDSet is an immutable set of entity ids.
type IDSet struct {
	ids map[string]struct{}
}

func NewIDSet(ids ...string) IDSet {
	s := IDSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s IDSet) Len() int { return len(s.ids) }

// With returns a copy of s with id added (member) or removed (!member).
func (s IDSet) With(id string, member bool) IDSet {
	if s.Has(id) == member {
		return s
	}
	next := make(map[string]struct{}, len(s.ids)+1)
	for k := range s.ids {
		next[k] = struct{}{}
	}
	if member {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}
	return IDSet{ids: next}
}

func (s IDSet) Toggle(id string) IDSet {
	return s.With(id, !s.Has(id))
}

// Slice returns the ids sorted.
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}
