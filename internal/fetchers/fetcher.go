// Package fetchers loads one page of a collection for the current viewer,
// normalizes it to canonical entities and enriches it with viewer-relative
// flags. A fetch never fails across this boundary: errors come back inside
// the Result next to an empty, usable batch.
package fetchers

import (
	"context"
	"fmt"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/sirupsen/logrus"
)

// DefaultPageSize is the number of entities a fetch loads
const DefaultPageSize = 20

// Result is the outcome of a fetch. Data is never nil.
type Result[T entity.Entity] struct {
	Data []T
	Err  error
}

// Fetcher loads a collection for a filter set.
type Fetcher[T entity.Entity] interface {
	Fetch(ctx context.Context, filters entity.Filters) Result[T]
}

// MembershipChecker answers a batched membership lookup for the viewer
type MembershipChecker interface {
	CheckMembership(ctx context.Context, ids []string, userID uint) (map[string]bool, error)
}

type AlumniLister interface {
	ListAlumni(ctx context.Context, opts repositories.ListOptions) ([]models.Alumni, error)
}

type JobLister interface {
	ListJobs(ctx context.Context, opts repositories.ListOptions) ([]models.Job, error)
}

type EventLister interface {
	ListEvents(ctx context.Context, opts repositories.ListOptions) ([]models.Event, error)
}

type PostLister interface {
	ListPosts(ctx context.Context, opts repositories.ListOptions) ([]models.Post, error)
}

type CommentLoader interface {
	GetCommentsByPostIDs(ctx context.Context, postIDs []string) (map[string][]models.Comment, error)
}

type NotificationLister interface {
	ListByRecipient(ctx context.Context, recipientID uint, opts repositories.ListOptions) ([]models.Notification, error)
}

// Options shared by every fetcher
type Options struct {
	UserID   uint
	PageSize int
}

func (o Options) pageSize() int {
	if o.PageSize < 1 {
		return DefaultPageSize
	}
	return o.PageSize
}

var log = logging.NewLogger("fetchers")

// guarded runs load and converts every failure, including panics, into Result.Err
func guarded[T entity.Entity](ctx context.Context, op string, filters entity.Filters, opts Options, load func(context.Context, Query) ([]T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{"op": op, "panic": r}).Error("fetch panicked")
			res = Result[T]{Data: []T{}, Err: apperrors.Internal(fmt.Sprintf("%s panicked: %v", op, r), nil)}
		}
	}()

	query, err := NewQuery(filters, 1, opts.pageSize())
	if err != nil {
		return Result[T]{Data: []T{}, Err: err}
	}

	data, err := load(ctx, query)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.Network(op, err)
		}
		log.WithFields(logrus.Fields{"op": op, "error": err}).Warn("fetch failed")
		return Result[T]{Data: []T{}, Err: err}
	}
	if data == nil {
		data = []T{}
	}
	return Result[T]{Data: data}
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}
