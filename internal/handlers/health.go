package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SessionCounter reports how many sessions are live
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	sessions SessionCounter
}

func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "alumni-sync",
		"sessions": h.sessions.Len(),
	})
}
