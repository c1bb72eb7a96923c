package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/middleware"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/internal/session"
	"github.com/anonto42/alumni-connect/backend/internal/store"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/labstack/echo/v4"
)

var log = logging.NewLogger("handlers")

// ViewerResolver looks up the author card of the signed-in alumni.
// *fetchers.Normalizer satisfies it.
type ViewerResolver interface {
	Authors(ctx context.Context, ids []uint) (map[uint]entity.Author, error)
}

// SessionHandler exposes the lifecycle, state and filters of the caller's session
type SessionHandler struct {
	sessions *session.Manager
	viewers  ViewerResolver
	origins  []string
}

func NewSessionHandler(sessions *session.Manager, viewers ViewerResolver) *SessionHandler {
	return &SessionHandler{sessions: sessions, viewers: viewers}
}

// AllowOrigins lets pages on the given origins open the stream. "*" allows any.
func (h *SessionHandler) AllowOrigins(origins ...string) *SessionHandler {
	h.origins = origins
	return h
}

// RegisterSessionRoutes registers the session routes on an authenticated group
func (h *SessionHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/session", h.Start)
	g.DELETE("/session", h.End)
	g.GET("/session/state", h.State)
	g.GET("/session/stream", h.Stream)
	g.PUT("/session/filters/:collection", h.SetFilter)
	g.DELETE("/session/filters/:collection", h.ResetFilters)
	g.POST("/session/collections/:collection/retry", h.Retry)
}

// SessionResponse describes a live session and its current snapshot
type SessionResponse struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	StartedAt time.Time    `json:"startedAt"`
	Realtime  string       `json:"realtime"`
	State     *store.State `json:"state"`
}

func describe(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		UserID:    repositories.FormatID(s.UserID),
		StartedAt: s.StartedAt,
		Realtime:  realtimeState(s),
		State:     s.Store.State(),
	}
}

// Start creates the caller's session and performs the initial load. Starting
// an existing session returns it unchanged.
func (h *SessionHandler) Start(c echo.Context) error {
	userID, _ := middleware.UserID(c)
	ctx := c.Request().Context()

	viewer := entity.Author{ID: repositories.FormatID(userID)}
	if userID != 0 && h.viewers != nil {
		authors, err := h.viewers.Authors(ctx, []uint{userID})
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("failed to resolve viewer")
		}
		if a, ok := authors[userID]; ok {
			viewer = a
		}
	}

	_, existed := h.sessions.Get(userID)
	s, err := h.sessions.Start(ctx, userID, viewer)
	if err != nil {
		return respondError(err)
	}
	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	return c.JSON(status, describe(s))
}

// End discards the caller's session
func (h *SessionHandler) End(c echo.Context) error {
	userID, _ := middleware.UserID(c)
	h.sessions.End(userID)
	return c.NoContent(http.StatusNoContent)
}

// State returns the current snapshot
func (h *SessionHandler) State(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, describe(s))
}

// FilterRequest sets one filter key of a collection
type FilterRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SetFilter stores a filter value. The refetch it causes completes
// asynchronously and is observed through the state or the stream.
func (h *SessionHandler) SetFilter(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return err
	}
	var req FilterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	collection, err := collectionParam(c)
	if err != nil {
		return err
	}
	if err := s.Loop.SetFilter(collection, req.Key, req.Value); err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusAccepted, s.Store.State().FiltersFor(collection))
}

// ResetFilters clears every filter of a collection
func (h *SessionHandler) ResetFilters(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return err
	}
	collection, err := collectionParam(c)
	if err != nil {
		return err
	}
	if err := s.Loop.ResetFilters(collection); err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusAccepted, s.Store.State().FiltersFor(collection))
}

// Retry refetches a collection, typically one left in ERROR
func (h *SessionHandler) Retry(c echo.Context) error {
	s, err := h.current(c)
	if err != nil {
		return err
	}
	collection, err := collectionParam(c)
	if err != nil {
		return err
	}
	if err := s.Loop.Retry(collection); err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusAccepted, s.Store.State().Load(collection))
}

// current returns the caller's live session
func (h *SessionHandler) current(c echo.Context) (*session.Session, error) {
	return currentSession(c, h.sessions)
}

func currentSession(c echo.Context, sessions *session.Manager) (*session.Session, error) {
	userID, ok := middleware.UserID(c)
	if !ok || userID == 0 {
		return nil, respondError(apperrors.AuthRequired("use a session"))
	}
	s, ok := sessions.Get(userID)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, ErrorBody{
			Code:    apperrors.ErrCodeNotFound,
			Message: "no active session, start one first",
		})
	}
	return s, nil
}

func collectionParam(c echo.Context) (store.CollectionName, error) {
	name := c.Param("collection")
	collection, ok := store.ParseCollection(name)
	if !ok {
		return "", respondError(apperrors.Validation("collection", "unknown collection "+name))
	}
	return collection, nil
}
