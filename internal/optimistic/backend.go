package optimistic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Backend performs the authoritative writes behind each optimistic mutation.
type Backend interface {
	ToggleSavedJob(ctx context.Context, jobID string, userID uint) (bool, error)
	ToggleEventRegistration(ctx context.Context, eventID string, userID uint) (bool, error)
	ToggleConnection(ctx context.Context, alumniID string, userID uint) (bool, error)
	ToggleLike(ctx context.Context, postID string, userID uint) (liked bool, likes int, err error)
	CreatePost(ctx context.Context, userID uint, req models.CreatePostRequest) (entity.Post, error)
	CreateJob(ctx context.Context, userID uint, req models.CreateJobRequest) (entity.Job, error)
	CreateEvent(ctx context.Context, userID uint, req models.CreateEventRequest) (entity.Event, error)
	AddComment(ctx context.Context, userID uint, postID string, req models.CreateCommentRequest) (entity.Comment, error)
	MarkNotificationRead(ctx context.Context, id string, userID uint) error
	MarkAllNotificationsRead(ctx context.Context, userID uint) error
}

// RepositoryBackend implements Backend on top of the gorm and mongo repositories.
type RepositoryBackend struct {
	Saved         repositories.SavedJobRepository
	Registrations repositories.RegistrationRepository
	Connections   repositories.ConnectionRepository
	Likes         repositories.LikeRepository
	Posts         repositories.PostRepository
	Jobs          repositories.JobRepository
	Events        repositories.EventRepository
	Comments      repositories.CommentRepository
	Notifications repositories.NotificationRepository
	Normalizer    *fetchers.Normalizer
}

func (b *RepositoryBackend) ToggleSavedJob(ctx context.Context, jobID string, userID uint) (bool, error) {
	saved, err := b.Saved.Toggle(ctx, jobID, userID)
	return saved, translate("save job", "job", jobID, err)
}

func (b *RepositoryBackend) ToggleEventRegistration(ctx context.Context, eventID string, userID uint) (bool, error) {
	registered, err := b.Registrations.Toggle(ctx, eventID, userID)
	return registered, translate("register for event", "event", eventID, err)
}

func (b *RepositoryBackend) ToggleConnection(ctx context.Context, alumniID string, userID uint) (bool, error) {
	connected, err := b.Connections.Toggle(ctx, alumniID, userID)
	if err != nil {
		return false, translate("connect", "alumni", alumniID, err)
	}
	if connected {
		if target, err := repositories.ParseID(alumniID); err == nil {
			b.notify(ctx, &models.Notification{
				Type:        "connection",
				ActorID:     userID,
				RecipientID: target,
				TargetID:    repositories.FormatID(userID),
				TargetType:  "user",
				Message:     "connected with you",
			})
		}
	}
	return connected, nil
}

// ToggleLike flips the like row and moves likes_count by one, returning the
// post's new count.
func (b *RepositoryBackend) ToggleLike(ctx context.Context, postID string, userID uint) (bool, int, error) {
	post, err := b.Posts.GetPostByID(ctx, postID)
	if err != nil {
		return false, 0, translate("like post", "post", postID, err)
	}

	liked, err := b.Likes.Toggle(ctx, postID, userID)
	if err != nil {
		return false, 0, translate("like post", "post", postID, err)
	}
	delta := -1
	if liked {
		delta = 1
	}
	likes, err := b.Posts.AdjustLikesCount(ctx, postID, delta)
	if err != nil {
		return false, 0, translate("like post", "post", postID, err)
	}

	if liked && post.AuthorID != userID {
		b.notify(ctx, &models.Notification{
			Type:        "like",
			ActorID:     userID,
			RecipientID: post.AuthorID,
			TargetID:    postID,
			TargetType:  "post",
			Message:     "liked your post",
		})
	}
	return liked, likes, nil
}

func (b *RepositoryBackend) CreatePost(ctx context.Context, userID uint, req models.CreatePostRequest) (entity.Post, error) {
	post := &models.Post{AuthorID: userID, Content: req.Content, ImageURLs: req.ImageURLs}
	if err := b.Posts.CreatePost(ctx, post); err != nil {
		return entity.Post{}, translate("create post", "post", "", err)
	}
	return b.Normalizer.Post(*post, b.authors(ctx, userID)), nil
}

func (b *RepositoryBackend) CreateJob(ctx context.Context, userID uint, req models.CreateJobRequest) (entity.Job, error) {
	job := &models.Job{
		Title:          req.Title,
		Company:        req.Company,
		Location:       req.Location,
		JobType:        req.JobType,
		Category:       req.Category,
		Description:    req.Description,
		SalaryRange:    req.SalaryRange,
		ApplicationURL: req.ApplicationURL,
		PostedByID:     userID,
		Deadline:       req.Deadline,
	}
	if err := b.Jobs.CreateJob(ctx, job); err != nil {
		return entity.Job{}, translate("create job", "job", "", err)
	}
	return b.Normalizer.Job(*job, b.authors(ctx, userID)), nil
}

func (b *RepositoryBackend) CreateEvent(ctx context.Context, userID uint, req models.CreateEventRequest) (entity.Event, error) {
	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		EventType:   req.EventType,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		OrganizerID: userID,
	}
	if err := b.Events.CreateEvent(ctx, event); err != nil {
		return entity.Event{}, translate("create event", "event", "", err)
	}
	return b.Normalizer.Event(*event, b.authors(ctx, userID)), nil
}

// AddComment checks the post exists, stores the comment and bumps the post's
// comment counter.
func (b *RepositoryBackend) AddComment(ctx context.Context, userID uint, postID string, req models.CreateCommentRequest) (entity.Comment, error) {
	post, err := b.Posts.GetPostByID(ctx, postID)
	if err != nil {
		return entity.Comment{}, translate("add comment", "post", postID, err)
	}

	comment := &models.Comment{PostID: postID, AuthorID: userID, Content: req.Content}
	if err := b.Comments.CreateComment(ctx, comment); err != nil {
		return entity.Comment{}, translate("add comment", "post", postID, err)
	}
	if err := b.Posts.IncrementCommentsCount(ctx, postID); err != nil {
		log.WithError(err).WithField("post_id", postID).Warn("failed to increment comments count")
	}

	if post.AuthorID != userID {
		b.notify(ctx, &models.Notification{
			Type:        "comment",
			ActorID:     userID,
			RecipientID: post.AuthorID,
			TargetID:    postID,
			TargetType:  "post",
			Message:     "commented on your post",
		})
	}
	return b.Normalizer.Comment(*comment, b.authors(ctx, userID)), nil
}

func (b *RepositoryBackend) MarkNotificationRead(ctx context.Context, id string, userID uint) error {
	return translate("mark notification read", "notification", id, b.Notifications.MarkAsRead(ctx, id, userID))
}

func (b *RepositoryBackend) MarkAllNotificationsRead(ctx context.Context, userID uint) error {
	return translate("mark notifications read", "notification", "", b.Notifications.MarkAllAsRead(ctx, userID))
}

// authors resolves the acting user for the returned entity. A failed lookup
// still yields an author carrying the id.
func (b *RepositoryBackend) authors(ctx context.Context, userID uint) map[uint]entity.Author {
	authors, err := b.Normalizer.Authors(ctx, []uint{userID})
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("author lookup failed")
	}
	return authors
}

// notify is best effort: the mutation already succeeded.
func (b *RepositoryBackend) notify(ctx context.Context, n *models.Notification) {
	if b.Notifications == nil {
		return
	}
	if err := b.Notifications.CreateNotification(ctx, n); err != nil {
		log.WithError(err).WithField("type", n.Type).Warn("failed to create notification")
	}
}

// translate maps storage errors onto the application error codes.
func translate(op, kind, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return apperrors.NotFound(kind, id)
	case errors.Is(err, repositories.ErrInvalidID):
		return apperrors.Validation("id", fmt.Sprintf("%q is not a valid %s id", id, kind))
	case errors.Is(err, repositories.ErrSelfConnection):
		return apperrors.Validation("id", err.Error())
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Network(op, err)
}
