package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/middleware"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// ProfileNormalizer turns alumni rows into directory entries and refreshes the
// author cache. *fetchers.Normalizer satisfies it.
type ProfileNormalizer interface {
	Alumni(a models.Alumni) entity.Alumni
	Remember(a models.Alumni)
}

// ProfileHandler handles the signed-in alumni's own directory profile
type ProfileHandler struct {
	alumni     repositories.AlumniRepository
	normalizer ProfileNormalizer
	validate   *validator.Validate
}

func NewProfileHandler(alumni repositories.AlumniRepository, normalizer ProfileNormalizer) *ProfileHandler {
	return &ProfileHandler{alumni: alumni, normalizer: normalizer, validate: validator.New()}
}

// RegisterProfileRoutes registers profile routes
func (h *ProfileHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/alumni/:id", h.GetAlumni)
}

// GetAlumni returns one directory entry by id
func (h *ProfileHandler) GetAlumni(c echo.Context) error {
	id, err := repositories.ParseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid alumni ID")
	}
	return h.respond(c, id)
}

// GetProfile returns the caller's directory entry
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	userID, _ := middleware.UserID(c)
	return h.respond(c, userID)
}

func (h *ProfileHandler) respond(c echo.Context, id uint) error {
	alumni, err := h.alumni.GetAlumniByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Alumni not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, h.normalizer.Alumni(*alumni))
}

// UpdateProfile updates the caller's profile. Open sessions pick the change
// up from the users change feed.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	userID, _ := middleware.UserID(c)

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	alumni, err := h.alumni.GetAlumniByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Alumni not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	}

	applyProfile(alumni, req)
	if err := h.alumni.UpdateAlumni(ctx, alumni); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update profile").SetInternal(err)
	}
	h.normalizer.Remember(*alumni)

	return c.JSON(http.StatusOK, h.normalizer.Alumni(*alumni))
}

func applyProfile(a *models.Alumni, req models.UpdateProfileRequest) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.Name, req.Name)
	set(&a.AvatarURL, req.AvatarURL)
	set(&a.Degree, req.Degree)
	set(&a.Major, req.Major)
	set(&a.Company, req.Company)
	set(&a.Position, req.Position)
	set(&a.Location, req.Location)
	set(&a.Industry, req.Industry)
	set(&a.Bio, req.Bio)
	set(&a.LinkedInURL, req.LinkedInURL)
	if req.Skills != nil {
		a.Skills = req.Skills
	}
}
