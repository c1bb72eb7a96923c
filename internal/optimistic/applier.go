// Package optimistic applies user mutations to the store before the backend
// confirms them, then reconciles to the backend's answer or rolls back.
package optimistic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/store"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/anonto42/alumni-connect/backend/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logging.NewLogger("optimistic")

// ErrInFlight is returned when an identical mutation has not settled yet. No
// backend call is made for the duplicate.
var ErrInFlight = errors.New("identical mutation already in flight")

// TempIDPrefix marks ids assigned locally before the backend answers.
const TempIDPrefix = "temp-"

const (
	KindSaveJob          = "save_job"
	KindRegisterEvent    = "register_event"
	KindConnect          = "connect"
	KindLikePost         = "like_post"
	KindCreatePost       = "create_post"
	KindCreateJob        = "create_job"
	KindCreateEvent      = "create_event"
	KindAddComment       = "add_comment"
	KindReadNotification = "read_notification"
	KindReadAll          = "read_all_notifications"
)

// Applier runs the optimistic mutations of one session.
type Applier struct {
	store    *store.Store
	backend  Backend
	userID   uint
	viewer   entity.Author
	validate *validator.Validate
	logger   *logrus.Entry

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates an Applier acting as viewer. A zero userID means no identity:
// every mutation then fails with an auth-required error.
func New(s *store.Store, backend Backend, userID uint, viewer entity.Author) *Applier {
	return &Applier{
		store:    s,
		backend:  backend,
		userID:   userID,
		viewer:   viewer,
		validate: validator.New(),
		logger:   log.WithField("user_id", userID),
		inFlight: make(map[string]struct{}),
	}
}

// begin runs the guards shared by every mutation and claims key. The returned
// release must be called once the mutation settled.
func (a *Applier) begin(kind, key, action string) (func(), error) {
	if a.userID == 0 {
		metrics.MutationsTotal.WithLabelValues(kind, "unauthenticated").Inc()
		err := apperrors.AuthRequired(action)
		a.store.ShowToast(store.ToastError, "Please sign in to "+action)
		return nil, err
	}

	k := kind + ":" + key
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[k]; busy {
		metrics.MutationsTotal.WithLabelValues(kind, "in_flight").Inc()
		a.logger.WithField("key", k).Debug("ignoring duplicate mutation")
		return nil, ErrInFlight
	}
	a.inFlight[k] = struct{}{}
	return func() {
		a.mu.Lock()
		delete(a.inFlight, k)
		a.mu.Unlock()
	}, nil
}

func (a *Applier) succeed(kind, message string) {
	metrics.MutationsTotal.WithLabelValues(kind, "ok").Inc()
	if message != "" {
		a.store.ShowToast(store.ToastSuccess, message)
	}
}

// fail is called after the local change was reverted.
func (a *Applier) fail(kind, message string, err error) error {
	metrics.MutationsTotal.WithLabelValues(kind, "rolled_back").Inc()
	a.logger.WithError(err).WithField("kind", kind).Warn("mutation failed, local change rolled back")
	a.store.ShowToast(store.ToastError, message)
	return err
}

type toggleCall func(ctx context.Context, id string, userID uint) (bool, error)

// toggle flips id in set, asks the backend and forces the set to the
// backend's answer, or back to the prior value on failure. The answer is
// compared with the store as it is now, since a refetch may have replaced the
// set while the call was out.
func (a *Applier) toggle(ctx context.Context, kind, action string, set store.MembershipSet, id string, call toggleCall, on, off, failure string) (bool, error) {
	release, err := a.begin(kind, id, action)
	if err != nil {
		return false, err
	}
	defer release()

	prior := a.store.State().Membership(set).Has(id)
	a.store.Dispatch(store.ToggleMembership{Set: set, ID: id})

	member, err := call(ctx, id, a.userID)
	if err != nil {
		a.store.Dispatch(store.SetMembership{Set: set, ID: id, Member: prior})
		return prior, a.fail(kind, failure, err)
	}
	if a.store.State().Membership(set).Has(id) != member {
		a.store.Dispatch(store.SetMembership{Set: set, ID: id, Member: member})
	}
	if member {
		a.succeed(kind, on)
	} else {
		a.succeed(kind, off)
	}
	return member, nil
}

// ToggleSavedJob bookmarks or un-bookmarks a job and reports the final state.
func (a *Applier) ToggleSavedJob(ctx context.Context, jobID string) (bool, error) {
	return a.toggle(ctx, KindSaveJob, "save jobs", store.SavedJobs, jobID, a.backend.ToggleSavedJob,
		"Job saved", "Job removed from saved", "Could not update saved job")
}

// ToggleEventRegistration registers for or leaves an event. The attendee
// count moves with the registration.
func (a *Applier) ToggleEventRegistration(ctx context.Context, eventID string) (bool, error) {
	return a.toggle(ctx, KindRegisterEvent, "register for events", store.RegisteredEvents, eventID, a.backend.ToggleEventRegistration,
		"Registered for event", "Registration cancelled", "Could not update registration")
}

func (a *Applier) ToggleConnection(ctx context.Context, alumniID string) (bool, error) {
	return a.toggle(ctx, KindConnect, "connect with alumni", store.Connections, alumniID, a.backend.ToggleConnection,
		"Connected", "Connection removed", "Could not update connection")
}

// LikePost flips the viewer's like and adopts the backend's count.
func (a *Applier) LikePost(ctx context.Context, postID string) (bool, error) {
	release, err := a.begin(KindLikePost, postID, "like posts")
	if err != nil {
		return false, err
	}
	defer release()

	prior, known := a.store.State().Posts.Get(postID)
	a.store.Dispatch(store.LikePost{ID: postID})

	liked, likes, err := a.backend.ToggleLike(ctx, postID, a.userID)
	if err != nil {
		if known {
			a.store.Dispatch(store.SetPostLikes{ID: postID, Liked: prior.IsLiked, Likes: prior.Likes})
		}
		return prior.IsLiked, a.fail(KindLikePost, "Could not update like", err)
	}

	current, _ := a.store.State().Posts.Get(postID)
	if current.IsLiked != liked || current.Likes != likes {
		a.store.Dispatch(store.SetPostLikes{ID: postID, Liked: liked, Likes: likes})
	}
	a.succeed(KindLikePost, "")
	return liked, nil
}

// CreatePost shows the post under a temporary id until the backend assigns one.
func (a *Applier) CreatePost(ctx context.Context, req models.CreatePostRequest) (entity.Post, error) {
	release, err := a.prepareCreate(KindCreatePost, "create posts", req)
	if err != nil {
		return entity.Post{}, err
	}
	defer release()

	tempID := newTempID()
	a.store.Dispatch(store.AddPost{Item: entity.Post{
		ID:        tempID,
		Content:   req.Content,
		Author:    a.viewer,
		ImageURLs: nonNil(req.ImageURLs),
		Comments:  []entity.Comment{},
		CreatedAt: time.Now(),
	}})

	post, err := a.backend.CreatePost(ctx, a.userID, req)
	if err != nil {
		a.store.Dispatch(store.RemoveItem{Collection: store.CollectionPosts, ID: tempID})
		return entity.Post{}, a.fail(KindCreatePost, "Could not publish post", err)
	}
	a.store.Dispatch(store.ReplaceItem{Collection: store.CollectionPosts, ID: tempID, Item: post})
	a.succeed(KindCreatePost, "Post published")
	return post, nil
}

func (a *Applier) CreateJob(ctx context.Context, req models.CreateJobRequest) (entity.Job, error) {
	release, err := a.prepareCreate(KindCreateJob, "post jobs", req)
	if err != nil {
		return entity.Job{}, err
	}
	defer release()

	viewer := a.viewer
	tempID := newTempID()
	a.store.Dispatch(store.AddJob{Item: entity.Job{
		ID:             tempID,
		Title:          req.Title,
		Company:        req.Company,
		Location:       req.Location,
		Type:           req.JobType,
		Category:       req.Category,
		Description:    req.Description,
		SalaryRange:    req.SalaryRange,
		ApplicationURL: req.ApplicationURL,
		PostedBy:       &viewer,
		Deadline:       req.Deadline,
		CreatedAt:      time.Now(),
	}})

	job, err := a.backend.CreateJob(ctx, a.userID, req)
	if err != nil {
		a.store.Dispatch(store.RemoveItem{Collection: store.CollectionJobs, ID: tempID})
		return entity.Job{}, a.fail(KindCreateJob, "Could not post job", err)
	}
	a.store.Dispatch(store.ReplaceItem{Collection: store.CollectionJobs, ID: tempID, Item: job})
	a.succeed(KindCreateJob, "Job posted")
	return job, nil
}

func (a *Applier) CreateEvent(ctx context.Context, req models.CreateEventRequest) (entity.Event, error) {
	release, err := a.prepareCreate(KindCreateEvent, "create events", req)
	if err != nil {
		return entity.Event{}, err
	}
	defer release()

	viewer := a.viewer
	tempID := newTempID()
	a.store.Dispatch(store.AddEvent{Item: entity.Event{
		ID:          tempID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.EventType,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		Organizer:   &viewer,
		CreatedAt:   time.Now(),
	}})

	event, err := a.backend.CreateEvent(ctx, a.userID, req)
	if err != nil {
		a.store.Dispatch(store.RemoveItem{Collection: store.CollectionEvents, ID: tempID})
		return entity.Event{}, a.fail(KindCreateEvent, "Could not create event", err)
	}
	a.store.Dispatch(store.ReplaceItem{Collection: store.CollectionEvents, ID: tempID, Item: event})
	a.succeed(KindCreateEvent, "Event created")
	return event, nil
}

// AddComment appends a temporary comment to the post and swaps in the stored
// one when the backend answers.
func (a *Applier) AddComment(ctx context.Context, postID string, req models.CreateCommentRequest) (entity.Comment, error) {
	release, err := a.prepareCreate(KindAddComment, "comment", struct {
		PostID string
		models.CreateCommentRequest
	}{postID, req})
	if err != nil {
		return entity.Comment{}, err
	}
	defer release()

	tempID := newTempID()
	a.store.Dispatch(store.AddComment{PostID: postID, Comment: entity.Comment{
		ID:        tempID,
		PostID:    postID,
		Author:    a.viewer,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}})

	comment, err := a.backend.AddComment(ctx, a.userID, postID, req)
	if err != nil {
		a.store.Dispatch(store.RemoveComment{PostID: postID, CommentID: tempID})
		return entity.Comment{}, a.fail(KindAddComment, "Could not add comment", err)
	}
	a.store.Dispatch(store.ReplaceComment{PostID: postID, TempID: tempID, Comment: comment})
	a.succeed(KindAddComment, "")
	return comment, nil
}

// MarkNotificationRead marks one notification read. Already read or unknown
// notifications still reach the backend, but nothing is rolled back for them.
func (a *Applier) MarkNotificationRead(ctx context.Context, id string) error {
	release, err := a.begin(KindReadNotification, id, "read notifications")
	if err != nil {
		return err
	}
	defer release()

	n, known := a.store.State().Notifications.Get(id)
	wasUnread := known && !n.Read
	a.store.Dispatch(store.MarkNotificationRead{ID: id})

	if err := a.backend.MarkNotificationRead(ctx, id, a.userID); err != nil {
		if wasUnread {
			a.store.Dispatch(store.RestoreUnread{IDs: []string{id}})
		}
		return a.fail(KindReadNotification, "Could not mark notification as read", err)
	}
	a.succeed(KindReadNotification, "")
	return nil
}

func (a *Applier) MarkAllNotificationsRead(ctx context.Context) error {
	release, err := a.begin(KindReadAll, "*", "read notifications")
	if err != nil {
		return err
	}
	defer release()

	var unread []string
	for _, n := range a.store.State().Notifications.Items() {
		if !n.Read {
			unread = append(unread, n.ID)
		}
	}
	a.store.Dispatch(store.MarkAllNotificationsRead{})

	if err := a.backend.MarkAllNotificationsRead(ctx, a.userID); err != nil {
		if len(unread) > 0 {
			a.store.Dispatch(store.RestoreUnread{IDs: unread})
		}
		return a.fail(KindReadAll, "Could not mark notifications as read", err)
	}
	a.succeed(KindReadAll, "All notifications marked as read")
	return nil
}

// prepareCreate validates payload and claims the key kind:digest(payload), so
// a double submit of the same form is ignored.
func (a *Applier) prepareCreate(kind, action string, payload interface{}) (func(), error) {
	if a.userID != 0 {
		if err := a.validate.Struct(payload); err != nil {
			metrics.MutationsTotal.WithLabelValues(kind, "invalid").Inc()
			appErr := validationError(err)
			a.store.ShowToast(store.ToastError, appErr.Message)
			return nil, appErr
		}
	}
	digest, err := digestOf(payload)
	if err != nil {
		return nil, apperrors.Internal("encode mutation payload", err)
	}
	return a.begin(kind, digest, action)
}

func validationError(err error) *apperrors.Error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.Validation(fe.Field(), "failed '"+fe.Tag()+"' check")
	}
	return apperrors.Validation("payload", err.Error())
}

func digestOf(payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func newTempID() string {
	return TempIDPrefix + uuid.NewString()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
