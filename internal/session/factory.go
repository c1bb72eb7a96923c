package session

import (
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/optimistic"
	"github.com/anonto42/alumni-connect/backend/internal/realtime"
	"github.com/anonto42/alumni-connect/backend/internal/refetch"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/internal/store"
)

// Repositories is the storage layer every session reads and writes through.
type Repositories struct {
	Alumni        repositories.AlumniRepository
	Jobs          repositories.JobRepository
	Events        repositories.EventRepository
	Posts         repositories.PostRepository
	Comments      repositories.CommentRepository
	Likes         repositories.LikeRepository
	Saved         repositories.SavedJobRepository
	Registrations repositories.RegistrationRepository
	Connections   repositories.ConnectionRepository
	Notifications repositories.NotificationRepository
}

// RepositoryFactory wires fetchers, backend and memberships of each session
// to repos. The normalizer and feed are shared by all sessions.
func RepositoryFactory(repos Repositories, normalizer *fetchers.Normalizer, feed realtime.Feed, pageSize int) Factory {
	backend := &optimistic.RepositoryBackend{
		Saved:         repos.Saved,
		Registrations: repos.Registrations,
		Connections:   repos.Connections,
		Likes:         repos.Likes,
		Posts:         repos.Posts,
		Jobs:          repos.Jobs,
		Events:        repos.Events,
		Comments:      repos.Comments,
		Notifications: repos.Notifications,
		Normalizer:    normalizer,
	}

	return func(userID uint) Deps {
		opts := fetchers.Options{UserID: userID, PageSize: pageSize}
		deps := Deps{
			Fetchers: refetch.Fetchers{
				Alumni: &fetchers.AlumniFetcher{
					Alumni: repos.Alumni, Connections: repos.Connections, Normalizer: normalizer, Options: opts,
				},
				Jobs: &fetchers.JobFetcher{
					Jobs: repos.Jobs, Saved: repos.Saved, Normalizer: normalizer, Options: opts,
				},
				Events: &fetchers.EventFetcher{
					Events: repos.Events, Registrations: repos.Registrations, Normalizer: normalizer, Options: opts,
				},
				Posts: &fetchers.PostFetcher{
					Posts: repos.Posts, Likes: repos.Likes, Comments: repos.Comments, Normalizer: normalizer, Options: opts,
				},
				Notifications: &fetchers.NotificationFetcher{
					Notifications: repos.Notifications, Normalizer: normalizer, Options: opts,
				},
			},
			Backend: backend,
			Feed:    feed,
			Memberships: map[store.MembershipSet]MemberLister{
				store.SavedJobs:        repos.Saved,
				store.RegisteredEvents: repos.Registrations,
				store.Connections:      repos.Connections,
			},
		}
		// a nil *Normalizer must not become a non-nil interface
		if normalizer != nil {
			deps.Normalizer = normalizer
		}
		return deps
	}
}
