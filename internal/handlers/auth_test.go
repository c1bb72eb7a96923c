package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/middleware"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memAlumni struct {
	mu   sync.Mutex
	rows map[uint]models.Alumni
	next uint
}

func newMemAlumni() *memAlumni {
	return &memAlumni{rows: make(map[uint]models.Alumni)}
}

func (m *memAlumni) CreateAlumni(_ context.Context, a *models.Alumni) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	a.ID = m.next
	m.rows[a.ID] = *a
	return nil
}

func (m *memAlumni) GetAlumniByID(_ context.Context, id uint) (*models.Alumni, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (m *memAlumni) GetAlumniByIDs(_ context.Context, ids []uint) ([]models.Alumni, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Alumni
	for _, id := range ids {
		if a, ok := m.rows[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAlumni) find(match func(models.Alumni) bool) (*models.Alumni, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if match(a) {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAlumni) GetAlumniByEmail(_ context.Context, email string) (*models.Alumni, error) {
	return m.find(func(a models.Alumni) bool { return a.Email == email })
}

func (m *memAlumni) GetAlumniByFirebaseUID(_ context.Context, uid string) (*models.Alumni, error) {
	return m.find(func(a models.Alumni) bool { return a.FirebaseUID != nil && *a.FirebaseUID == uid })
}

func (m *memAlumni) UpdateAlumni(_ context.Context, a *models.Alumni) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID] = *a
	return nil
}

func (m *memAlumni) ListAlumni(context.Context, repositories.ListOptions) ([]models.Alumni, error) {
	return nil, nil
}

type stubVerifier map[string]*auth.Token

func (v stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if t, ok := v[idToken]; ok {
		return t, nil
	}
	return nil, errors.New("invalid token")
}

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newAuthServer(alumni *memAlumni, verifier stubVerifier) *echo.Echo {
	e := echo.New()
	h := NewAuthHandler(alumni, verifier, "secret", time.Hour)
	h.RegisterAuthRoutes(e.Group("/auth"))
	return e
}

func tokenUser(t *testing.T, rec *httptest.ResponseRecorder) uint {
	t.Helper()
	var res TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	id, err := middleware.JWTIdentifier("secret")(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, repositories.FormatID(id), res.UserID)
	return id
}

func TestAuthHandler_SignupAndSignIn(t *testing.T) {
	alumni := newMemAlumni()
	e := newAuthServer(alumni, nil)

	body := `{"name":"Ada Lovelace","email":"Ada@Example.com","password":"analytical","graduation_year":1835}`
	rec := post(e, "/auth/signup", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := tokenUser(t, rec)

	stored, err := alumni.GetAlumniByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.NotEqual(t, "analytical", stored.Password)

	assert.Equal(t, http.StatusConflict, post(e, "/auth/signup", body).Code)
	assert.Equal(t, http.StatusBadRequest, post(e, "/auth/signup", `{"email":"x"}`).Code)

	rec = post(e, "/auth/signin", `{"email":"ada@example.com","password":"analytical"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, tokenUser(t, rec))

	assert.Equal(t, http.StatusUnauthorized, post(e, "/auth/signin", `{"email":"ada@example.com","password":"wrong-one"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(e, "/auth/signin", `{"email":"bob@example.com","password":"whatever"}`).Code)
}

func TestAuthHandler_FirebaseLogin(t *testing.T) {
	alumni := newMemAlumni()
	existing := &models.Alumni{Name: "Grace", Email: "grace@example.com"}
	require.NoError(t, alumni.CreateAlumni(context.Background(), existing))

	e := newAuthServer(alumni, stubVerifier{
		"grace-token": {UID: "fb-grace", Claims: map[string]interface{}{"email": "grace@example.com", "name": "Grace Hopper"}},
		"new-token":   {UID: "fb-new", Claims: map[string]interface{}{"email": "new@example.com", "name": "Newcomer"}},
	})

	// links the existing local account
	rec := post(e, "/auth/firebase-login", `{"idToken":"grace-token"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, existing.ID, tokenUser(t, rec))
	linked, err := alumni.GetAlumniByFirebaseUID(context.Background(), "fb-grace")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.ID)

	// a second login updates the profile name
	rec = post(e, "/auth/firebase-login", `{"idToken":"grace-token"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	linked, _ = alumni.GetAlumniByID(context.Background(), existing.ID)
	assert.Equal(t, "Grace Hopper", linked.Name)

	// creates an unknown user
	rec = post(e, "/auth/firebase-login", `{"idToken":"new-token"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, existing.ID, tokenUser(t, rec))

	assert.Equal(t, http.StatusUnauthorized, post(e, "/auth/firebase-login", `{"idToken":"forged"}`).Code)
}

func TestAuthHandler_FirebaseDisabled(t *testing.T) {
	e := echo.New()
	NewAuthHandler(newMemAlumni(), nil, "secret", time.Hour).RegisterAuthRoutes(e.Group("/auth"))
	assert.Equal(t, http.StatusNotImplemented, post(e, "/auth/firebase-login", `{"idToken":"x"}`).Code)
}

func TestProfileHandler(t *testing.T) {
	alumni := newMemAlumni()
	me := &models.Alumni{Name: "Ada", Email: "ada@example.com", GraduationYear: 2012}
	require.NoError(t, alumni.CreateAlumni(context.Background(), me))
	normalizer := fetchers.NewNormalizer(alumni)

	e := echo.New()
	api := e.Group("/api/v1", asUser)
	NewProfileHandler(alumni, normalizer).RegisterProfileRoutes(api)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", strings.NewReader(`{"company":"Analytical Engines","skills":["go","sql"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		ID      string   `json:"id"`
		Name    string   `json:"name"`
		Company string   `json:"company"`
		Skills  []string `json:"skills"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "Analytical Engines", got.Company)
	assert.Equal(t, []string{"go", "sql"}, got.Skills)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/alumni/99", nil)
	req.Header.Set("X-User-ID", "1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/alumni/abc", nil)
	req.Header.Set("X-User-ID", "1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
