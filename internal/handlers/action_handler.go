package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/optimistic"
	"github.com/anonto42/alumni-connect/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// ActionHandler routes user mutations through the optimistic applier of the
// caller's session. The session state already reflects the outcome when a
// response is written.
type ActionHandler struct {
	sessions *session.Manager
}

func NewActionHandler(sessions *session.Manager) *ActionHandler {
	return &ActionHandler{sessions: sessions}
}

// RegisterActionRoutes registers the mutation routes on an authenticated group
func (h *ActionHandler) RegisterActionRoutes(g *echo.Group) {
	g.POST("/jobs", h.CreateJob)
	g.POST("/jobs/:id/save", h.ToggleSavedJob)
	g.POST("/events", h.CreateEvent)
	g.POST("/events/:id/register", h.ToggleEventRegistration)
	g.POST("/alumni/:id/connect", h.ToggleConnection)
	g.POST("/posts", h.CreatePost)
	g.POST("/posts/:id/like", h.LikePost)
	g.POST("/posts/:id/comments", h.AddComment)
	g.POST("/notifications/:id/read", h.MarkNotificationRead)
	g.POST("/notifications/read-all", h.MarkAllNotificationsRead)
}

// ToggleResponse reports the membership after a toggle settled
type ToggleResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

type toggleFunc func(a *optimistic.Applier, ctx context.Context, id string) (bool, error)

func (h *ActionHandler) toggle(c echo.Context, fn toggleFunc) error {
	s, err := currentSession(c, h.sessions)
	if err != nil {
		return err
	}
	id := c.Param("id")
	active, err := fn(s.Applier, c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, ToggleResponse{ID: id, Active: active})
}

func (h *ActionHandler) ToggleSavedJob(c echo.Context) error {
	return h.toggle(c, (*optimistic.Applier).ToggleSavedJob)
}

func (h *ActionHandler) ToggleEventRegistration(c echo.Context) error {
	return h.toggle(c, (*optimistic.Applier).ToggleEventRegistration)
}

func (h *ActionHandler) ToggleConnection(c echo.Context) error {
	return h.toggle(c, (*optimistic.Applier).ToggleConnection)
}

// LikePost toggles the caller's like on a post
func (h *ActionHandler) LikePost(c echo.Context) error {
	return h.toggle(c, (*optimistic.Applier).LikePost)
}

func (h *ActionHandler) CreatePost(c echo.Context) error {
	s, err := currentSession(c, h.sessions)
	if err != nil {
		return err
	}
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	post, err := s.Applier.CreatePost(c.Request().Context(), req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, post)
}

func (h *ActionHandler) CreateJob(c echo.Context) error {
	s, err := currentSession(c, h.sessions)
	if err != nil {
		return err
	}
	var req models.CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	job, err := s.Applier.CreateJob(c.Request().Context(), req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, job)
}

func (h *ActionHandler) CreateEvent(c echo.Context) error {
	s, err := currentSession(c, h.sessions)
	if err != nil {
		return err
	}
	var req models.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	event, err := s.Applier.CreateEvent(c.Request().Context(), req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, event)
}

// AddComment comments on the post in the path
func (h *ActionHandler) AddComment(c echo.Context) error {
	s, err := currentSession(c, h.sessions)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	comment, err := s.Applier.AddComment(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

func (h *ActionHandler) MarkNotificationRead(c echo.Context) error {
	s, err := currentSession(c, h.sessions)
	if err != nil {
		return err
	}
	if err := s.Applier.MarkNotificationRead(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ActionHandler) MarkAllNotificationsRead(c echo.Context) error {
	s, err := currentSession(c, h.sessions)
	if err != nil {
		return err
	}
	if err := s.Applier.MarkAllNotificationsRead(c.Request().Context()); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
