package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/pkg/firebase"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler issues the local JWTs every other route authenticates with
type AuthHandler struct {
	alumni    repositories.AlumniRepository
	verifier  firebase.TokenVerifier
	jwtSecret string
	jwtTTL    time.Duration
	validate  *validator.Validate
}

// NewAuthHandler creates a new AuthHandler. verifier may be nil, in which case
// firebase-login answers 501.
func NewAuthHandler(alumni repositories.AlumniRepository, verifier firebase.TokenVerifier, jwtSecret string, jwtTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		alumni:    alumni,
		verifier:  verifier,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		validate:  validator.New(),
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/signin", h.SignIn)
	g.POST("/firebase-login", h.FirebaseLogin)
}

// TokenResponse is returned by every successful sign-in
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// Signup handles local alumni registration with email and password
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.CreateLocalAlumniRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.alumni.GetAlumniByEmail(ctx, email); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "An alumni with this email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	alumni := &models.Alumni{
		Name:           req.Name,
		Email:          email,
		Password:       string(hashed),
		GraduationYear: req.GraduationYear,
	}
	if err := h.alumni.CreateAlumni(ctx, alumni); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create alumni").SetInternal(err)
	}

	return h.respondWithToken(c, http.StatusCreated, alumni)
}

// SignInRequest defines the request body for email sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignIn handles local authentication with email and password
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	alumni, err := h.alumni.GetAlumniByEmail(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	// Accounts created through Firebase have no local password.
	if alumni.Password == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(alumni.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}

	return h.respondWithToken(c, http.StatusOK, alumni)
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin verifies a Firebase ID token, links or creates the alumni
// record and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.verifier == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Firebase login is not enabled")
	}

	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	token, err := h.verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	uid := token.UID
	email, _ := token.Claims["email"].(string)
	email = strings.ToLower(email)
	name, _ := token.Claims["name"].(string)
	picture, _ := token.Claims["picture"].(string)

	alumni, err := h.alumni.GetAlumniByFirebaseUID(ctx, uid)
	switch {
	case err == nil:
		changed := false
		if name != "" && alumni.Name != name {
			alumni.Name = name
			changed = true
		}
		if picture != "" && alumni.AvatarURL != picture {
			alumni.AvatarURL = picture
			changed = true
		}
		if changed {
			if err := h.alumni.UpdateAlumni(ctx, alumni); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update alumni details").SetInternal(err)
			}
		}

	case errors.Is(err, gorm.ErrRecordNotFound):
		if email == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Firebase account has no email")
		}
		alumni, err = h.alumni.GetAlumniByEmail(ctx, email)
		switch {
		case err == nil:
			// Existing local account signing in with Firebase for the first time.
			alumni.FirebaseUID = &uid
			if err := h.alumni.UpdateAlumni(ctx, alumni); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to link Firebase account").SetInternal(err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			alumni = &models.Alumni{
				Name:        name,
				Email:       email,
				FirebaseUID: &uid,
				AvatarURL:   picture,
			}
			if err := h.alumni.CreateAlumni(ctx, alumni); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create alumni").SetInternal(err)
			}
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
		}

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	}

	return h.respondWithToken(c, http.StatusOK, alumni)
}

func (h *AuthHandler) respondWithToken(c echo.Context, status int, alumni *models.Alumni) error {
	token, err := h.generateJWT(alumni)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	return c.JSON(status, TokenResponse{Token: token, UserID: repositories.FormatID(alumni.ID)})
}

// generateJWT generates a JWT token for a given alumni
func (h *AuthHandler) generateJWT(alumni *models.Alumni) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		UserID: alumni.ID,
		Email:  alumni.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.jwtTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
}
