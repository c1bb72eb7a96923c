package repositories

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "42", FormatID(id))

	for _, bad := range []string{"", "0", "-1", "abc", "temp-1234"} {
		_, err := ParseID(bad)
		assert.True(t, errors.Is(err, ErrInvalidID), bad)
	}

	ids, err := ParseIDs([]string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	_, err = ParseIDs([]string{"1", "x"})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestListOptions_OrderClause(t *testing.T) {
	allowed := map[string]string{"title": "title", "createdAt": "created_at"}

	assert.Equal(t, "created_at DESC", ListOptions{}.orderClause(allowed, "created_at"))
	assert.Equal(t, "title ASC", ListOptions{SortBy: "title", SortOrder: "ASC"}.orderClause(allowed, "created_at"))
	// unknown columns never reach the query
	assert.Equal(t, "created_at DESC", ListOptions{SortBy: "password; DROP TABLE users"}.orderClause(allowed, "created_at"))
}

func TestListOptions_Limit(t *testing.T) {
	assert.Equal(t, 20, ListOptions{}.limit())
	assert.Equal(t, 5, ListOptions{Limit: 5}.limit())
}
