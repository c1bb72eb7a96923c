package fetchers

import (
	"strconv"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Query is the concrete fetch request built from a filter set.
type Query struct {
	Search    string `validate:"max=100"`
	Category  string `validate:"max=50"`
	Location  string `validate:"max=120"`
	Type      string `validate:"max=30"`
	Year      int    `validate:"omitempty,min=1900,max=2100"`
	Industry  string `validate:"max=60"`
	Page      int    `validate:"min=1"`
	Limit     int    `validate:"min=1,max=100"`
	SortBy    string `validate:"omitempty,alpha"`
	SortOrder string `validate:"oneof=asc desc"`
}

// NewQuery turns a filter set into a validated query. Keys holding the "all"
// sentinel become empty constraints.
func NewQuery(filters entity.Filters, page, limit int) (Query, error) {
	value := func(key string) string {
		if v := filters.Get(key); v != entity.All {
			return v
		}
		return ""
	}

	q := Query{
		Search:    value(entity.FilterSearch),
		Category:  value(entity.FilterCategory),
		Location:  value(entity.FilterLocation),
		Type:      value(entity.FilterType),
		Industry:  value(entity.FilterIndustry),
		Page:      page,
		Limit:     limit,
		SortBy:    value(entity.FilterSortBy),
		SortOrder: value(entity.FilterSortOrder),
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	if y := value(entity.FilterYear); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return Query{}, apperrors.Validation(entity.FilterYear, "must be a number")
		}
		q.Year = year
	}

	if err := validate.Struct(q); err != nil {
		field := "filters"
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field = verrs[0].Field()
		}
		return Query{}, apperrors.Validation(field, err.Error())
	}
	return q, nil
}

// ListOptions converts the query for the repositories
func (q Query) ListOptions() repositories.ListOptions {
	return repositories.ListOptions{
		Search:    q.Search,
		Category:  q.Category,
		Location:  q.Location,
		Type:      q.Type,
		Year:      q.Year,
		Industry:  q.Industry,
		Offset:    (q.Page - 1) * q.Limit,
		Limit:     q.Limit,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
}
