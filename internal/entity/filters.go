package entity

import "encoding/json"

// All is the sentinel filter value meaning "no constraint".
const All = "all"

// Filter keys understood by the fetchers.
const (
	FilterSearch    = "search"
	FilterCategory  = "category"
	FilterLocation  = "location"
	FilterType      = "type"
	FilterYear      = "year"
	FilterIndustry  = "industry"
	FilterSortBy    = "sortBy"
	FilterSortOrder = "sortOrder"
)

// FilterKeys lists every known key in a stable order.
var FilterKeys = []string{
	FilterSearch, FilterCategory, FilterLocation, FilterType,
	FilterYear, FilterIndustry, FilterSortBy, FilterSortOrder,
}

// IsFilterKey reports whether key is a known filter key.
func IsFilterKey(key string) bool {
	for _, k := range FilterKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Filters is an immutable filter set. The zero value has every key set to All.
type Filters struct {
	values map[string]string
}

// NewFilters builds a filter set, dropping empty and All values.
func NewFilters(values map[string]string) Filters {
	f := Filters{}
	for k, v := range values {
		f = f.With(k, v)
	}
	return f
}

// Get returns the value for key, or All when unset.
func (f Filters) Get(key string) string {
	if v, ok := f.values[key]; ok {
		return v
	}
	return All
}

// IsSet reports whether key carries a concrete constraint.
func (f Filters) IsSet(key string) bool {
	return f.Get(key) != All
}

// With returns a copy of f with key set to value. Empty or All clears the key.
func (f Filters) With(key, value string) Filters {
	next := make(map[string]string, len(f.values)+1)
	for k, v := range f.values {
		next[k] = v
	}
	if value == "" || value == All {
		delete(next, key)
	} else {
		next[key] = value
	}
	return Filters{values: next}
}

// Values returns a copy of the concrete constraints.
func (f Filters) Values() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both sets carry the same constraints.
func (f Filters) Equal(other Filters) bool {
	if len(f.values) != len(other.values) {
		return false
	}
	for k, v := range f.values {
		if other.values[k] != v {
			return false
		}
	}
	return true
}

// MarshalJSON renders every known key, using All for unset ones.
func (f Filters) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(FilterKeys))
	for _, k := range FilterKeys {
		out[k] = f.Get(k)
	}
	return json.Marshal(out)
}
