package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// ListOptions carries a validated fetch query down to the storage layer.
// Empty strings mean "no constraint".
type ListOptions struct {
	Search    string
	Category  string
	Location  string
	Type      string
	Year      int
	Industry  string
	Offset    int
	Limit     int
	SortBy    string
	SortOrder string
}

// orderClause resolves SortBy against a whitelist of sortable columns
func (o ListOptions) orderClause(allowed map[string]string, fallback string) string {
	column, ok := allowed[o.SortBy]
	if !ok {
		column = fallback
	}
	dir := "DESC"
	if strings.EqualFold(o.SortOrder, "asc") {
		dir = "ASC"
	}
	return column + " " + dir
}

func (o ListOptions) limit() int {
	if o.Limit < 1 {
		return 20
	}
	return o.Limit
}

// searchScope matches the term case-insensitively against any of the columns
func searchScope(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" {
			return db
		}
		like := "%" + strings.ToLower(term) + "%"
		clauses := make([]string, len(columns))
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			clauses[i] = fmt.Sprintf("LOWER(%s) LIKE ?", c)
			args[i] = like
		}
		return db.Where(strings.Join(clauses, " OR "), args...)
	}
}

// eqScope adds column = value when value is set
func eqScope(column, value string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

var (
	// ErrInvalidID is returned for ids that are not positive integers
	ErrInvalidID = errors.New("invalid id format")
	// ErrSelfConnection is returned when a user tries to connect to themselves
	ErrSelfConnection = errors.New("cannot connect to yourself")
)

// ParseID converts a canonical string id to a PostgreSQL primary key
func ParseID(id string) (uint, error) {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return uint(v), nil
}

// ParseIDs converts canonical string ids, rejecting the whole batch on the first bad id
func ParseIDs(ids []string) ([]uint, error) {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		v, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatID renders a PostgreSQL primary key as a canonical string id
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// toggleMembership deletes the relation row if present, otherwise creates row.
// It reports whether the relation exists afterwards.
func toggleMembership[T any](ctx context.Context, db *gorm.DB, row *T, after func(tx *gorm.DB, isMember bool) error, query string, args ...interface{}) (bool, error) {
	var isMember bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(query, args...).Delete(new(T))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			isMember = true
		}
		if after != nil {
			return after(tx, isMember)
		}
		return nil
	})
	return isMember, err
}

// checkMembership answers a batched membership lookup with one query.
// Every requested id is present in the result.
func checkMembership[T any](ctx context.Context, db *gorm.DB, userID uint, column string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	keys, err := ParseIDs(ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = false
	}
	var found []uint
	err = db.WithContext(ctx).Model(new(T)).
		Where("user_id = ? AND "+column+" IN ?", userID, keys).
		Pluck(column, &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		result[FormatID(id)] = true
	}
	return result, nil
}

// memberIDs lists every related id for a user
func memberIDs[T any](ctx context.Context, db *gorm.DB, userID uint, column string) ([]string, error) {
	var found []uint
	err := db.WithContext(ctx).Model(new(T)).Where("user_id = ?", userID).Pluck(column, &found).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, len(found))
	for i, id := range found {
		out[i] = FormatID(id)
	}
	return out, nil
}
