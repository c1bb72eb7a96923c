package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilters(t *testing.T) {
	var f Filters
	assert.Equal(t, All, f.Get(FilterSearch))
	assert.False(t, f.IsSet(FilterSearch))

	g := f.With(FilterSearch, "priya")
	assert.Equal(t, "priya", g.Get(FilterSearch))
	assert.Equal(t, All, f.Get(FilterSearch), "With must not mutate the receiver")

	h := g.With(FilterSearch, All)
	assert.False(t, h.IsSet(FilterSearch))
	assert.True(t, h.Equal(f))
	assert.False(t, g.Equal(f))

	values := g.Values()
	values[FilterSearch] = "changed"
	assert.Equal(t, "priya", g.Get(FilterSearch))
}

func TestFiltersMarshalJSON(t *testing.T) {
	f := NewFilters(map[string]string{FilterCategory: "engineering", FilterLocation: ""})

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "engineering", out[FilterCategory])
	assert.Equal(t, All, out[FilterLocation])
	assert.Len(t, out, len(FilterKeys))
}
