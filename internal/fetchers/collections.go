package fetchers

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
)

// AlumniFetcher loads the directory and marks the viewer's connections
type AlumniFetcher struct {
	Alumni      AlumniLister
	Connections MembershipChecker
	Normalizer  *Normalizer
	Options
}

func (f *AlumniFetcher) Fetch(ctx context.Context, filters entity.Filters) Result[entity.Alumni] {
	return guarded(ctx, "list alumni", filters, f.Options, func(ctx context.Context, q Query) ([]entity.Alumni, error) {
		rows, err := f.Alumni.ListAlumni(ctx, q.ListOptions())
		if err != nil {
			return nil, err
		}
		connected, err := f.Connections.CheckMembership(ctx, ids(rows, func(a models.Alumni) string { return repositories.FormatID(a.ID) }), f.UserID)
		if err != nil {
			return nil, err
		}
		out := make([]entity.Alumni, len(rows))
		for i, row := range rows {
			out[i] = f.Normalizer.Alumni(row)
			out[i].IsConnected = connected[out[i].ID]
		}
		return out, nil
	})
}

// JobFetcher loads job listings and marks the ones the viewer saved
type JobFetcher struct {
	Jobs       JobLister
	Saved      MembershipChecker
	Normalizer *Normalizer
	Options
}

func (f *JobFetcher) Fetch(ctx context.Context, filters entity.Filters) Result[entity.Job] {
	return guarded(ctx, "list jobs", filters, f.Options, func(ctx context.Context, q Query) ([]entity.Job, error) {
		rows, err := f.Jobs.ListJobs(ctx, q.ListOptions())
		if err != nil {
			return nil, err
		}
		saved, err := f.Saved.CheckMembership(ctx, ids(rows, func(j models.Job) string { return repositories.FormatID(j.ID) }), f.UserID)
		if err != nil {
			return nil, err
		}
		posters := make([]uint, len(rows))
		for i, row := range rows {
			posters[i] = row.PostedByID
		}
		authors, err := f.Normalizer.Authors(ctx, posters)
		if err != nil {
			return nil, err
		}
		out := make([]entity.Job, len(rows))
		for i, row := range rows {
			out[i] = f.Normalizer.Job(row, authors)
			out[i].IsSaved = saved[out[i].ID]
		}
		return out, nil
	})
}

// EventFetcher loads events and marks the ones the viewer registered for
type EventFetcher struct {
	Events        EventLister
	Registrations MembershipChecker
	Normalizer    *Normalizer
	Options
}

func (f *EventFetcher) Fetch(ctx context.Context, filters entity.Filters) Result[entity.Event] {
	return guarded(ctx, "list events", filters, f.Options, func(ctx context.Context, q Query) ([]entity.Event, error) {
		rows, err := f.Events.ListEvents(ctx, q.ListOptions())
		if err != nil {
			return nil, err
		}
		registered, err := f.Registrations.CheckMembership(ctx, ids(rows, func(e models.Event) string { return repositories.FormatID(e.ID) }), f.UserID)
		if err != nil {
			return nil, err
		}
		organizers := make([]uint, len(rows))
		for i, row := range rows {
			organizers[i] = row.OrganizerID
		}
		authors, err := f.Normalizer.Authors(ctx, organizers)
		if err != nil {
			return nil, err
		}
		out := make([]entity.Event, len(rows))
		for i, row := range rows {
			out[i] = f.Normalizer.Event(row, authors)
			out[i].IsRegistered = registered[out[i].ID]
		}
		return out, nil
	})
}

// PostFetcher loads the feed with comments, authors and the viewer's likes.
// Whatever the page size it issues one post query, one like lookup, one
// comment query and at most one author query.
type PostFetcher struct {
	Posts      PostLister
	Likes      MembershipChecker
	Comments   CommentLoader
	Normalizer *Normalizer
	Options
}

func (f *PostFetcher) Fetch(ctx context.Context, filters entity.Filters) Result[entity.Post] {
	return guarded(ctx, "list posts", filters, f.Options, func(ctx context.Context, q Query) ([]entity.Post, error) {
		rows, err := f.Posts.ListPosts(ctx, q.ListOptions())
		if err != nil {
			return nil, err
		}
		postIDs := ids(rows, func(p models.Post) string { return p.ID.Hex() })
		liked, err := f.Likes.CheckMembership(ctx, postIDs, f.UserID)
		if err != nil {
			return nil, err
		}
		comments, err := f.Comments.GetCommentsByPostIDs(ctx, postIDs)
		if err != nil {
			return nil, err
		}

		var people []uint
		for _, row := range rows {
			people = append(people, row.AuthorID)
		}
		for _, list := range comments {
			for _, c := range list {
				people = append(people, c.AuthorID)
			}
		}
		authors, err := f.Normalizer.Authors(ctx, people)
		if err != nil {
			return nil, err
		}

		out := make([]entity.Post, len(rows))
		for i, row := range rows {
			post := f.Normalizer.Post(row, authors)
			post.IsLiked = liked[post.ID]
			for _, c := range comments[post.ID] {
				post.Comments = append(post.Comments, f.Normalizer.Comment(c, authors))
			}
			out[i] = post
		}
		return out, nil
	})
}

// NotificationFetcher loads the viewer's notifications
type NotificationFetcher struct {
	Notifications NotificationLister
	Normalizer    *Normalizer
	Options
}

func (f *NotificationFetcher) Fetch(ctx context.Context, filters entity.Filters) Result[entity.Notification] {
	return guarded(ctx, "list notifications", filters, f.Options, func(ctx context.Context, q Query) ([]entity.Notification, error) {
		rows, err := f.Notifications.ListByRecipient(ctx, f.UserID, q.ListOptions())
		if err != nil {
			return nil, err
		}
		out := make([]entity.Notification, len(rows))
		for i, row := range rows {
			out[i] = f.Normalizer.Notification(row)
		}
		return out, nil
	})
}
