package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/entity"
	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/middleware"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/internal/optimistic"
	"github.com/anonto42/alumni-connect/backend/internal/refetch"
	"github.com/anonto42/alumni-connect/backend/internal/session"
	"github.com/anonto42/alumni-connect/backend/internal/store"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher[T entity.Entity] struct{ items []T }

func (f staticFetcher[T]) Fetch(context.Context, entity.Filters) fetchers.Result[T] {
	return fetchers.Result[T]{Data: f.items}
}

type stubBackend struct {
	failSave bool
}

func (b stubBackend) ToggleSavedJob(context.Context, string, uint) (bool, error) {
	if b.failSave {
		return false, apperrors.Network("save job", errors.New("connection refused"))
	}
	return true, nil
}
func (stubBackend) ToggleEventRegistration(context.Context, string, uint) (bool, error) {
	return true, nil
}
func (stubBackend) ToggleConnection(context.Context, string, uint) (bool, error) { return true, nil }
func (stubBackend) ToggleLike(context.Context, string, uint) (bool, int, error)  { return true, 4, nil }
func (stubBackend) CreatePost(_ context.Context, _ uint, req models.CreatePostRequest) (entity.Post, error) {
	return entity.Post{ID: "64b0c0ffee", Content: req.Content}, nil
}
func (stubBackend) CreateJob(context.Context, uint, models.CreateJobRequest) (entity.Job, error) {
	return entity.Job{ID: "30"}, nil
}
func (stubBackend) CreateEvent(context.Context, uint, models.CreateEventRequest) (entity.Event, error) {
	return entity.Event{ID: "40"}, nil
}
func (stubBackend) AddComment(context.Context, uint, string, models.CreateCommentRequest) (entity.Comment, error) {
	return entity.Comment{ID: "50"}, nil
}
func (stubBackend) MarkNotificationRead(context.Context, string, uint) error { return nil }
func (stubBackend) MarkAllNotificationsRead(context.Context, uint) error     { return nil }

func newTestManager(backend optimistic.Backend) *session.Manager {
	return session.NewManager(func(uint) session.Deps {
		return session.Deps{
			Fetchers: refetch.Fetchers{
				Jobs:          staticFetcher[entity.Job]{items: []entity.Job{{ID: "1", Title: "Backend Engineer"}, {ID: "2"}}},
				Notifications: staticFetcher[entity.Notification]{items: []entity.Notification{{ID: "7", RecipientID: "42"}}},
			},
			Backend: backend,
		}
	}, session.Config{ToastTTL: time.Minute, Refetch: refetch.Config{Debounce: time.Millisecond}})
}

// asUser authenticates requests carrying X-User-ID without a token.
func asUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id, err := strconv.ParseUint(c.Request().Header.Get("X-User-ID"), 10, 64); err == nil {
			c.Set(middleware.ContextUserID, uint(id))
		}
		return next(c)
	}
}

func newTestServer(sessions *session.Manager) *echo.Echo {
	e := echo.New()
	api := e.Group("/api/v1", asUser)
	NewSessionHandler(sessions, nil).RegisterSessionRoutes(api)
	NewActionHandler(sessions).RegisterActionRoutes(api)
	return e
}

func do(e *echo.Echo, method, path, body string, userID uint) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatUint(uint64(userID), 10))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", apperrors.AuthRequired("save a job"), http.StatusUnauthorized},
		{"validation", apperrors.Validation("filter", "unknown key"), http.StatusBadRequest},
		{"not found", apperrors.NotFound("job", "9"), http.StatusNotFound},
		{"network", apperrors.Network("save job", errors.New("timeout")), http.StatusBadGateway},
		{"in flight", optimistic.ErrInFlight, http.StatusAccepted},
		{"shut down", session.ErrClosed, http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var he *echo.HTTPError
			require.True(t, errors.As(respondError(tc.err), &he))
			assert.Equal(t, tc.status, he.Code)
		})
	}

	var he *echo.HTTPError
	require.True(t, errors.As(respondError(apperrors.Validation("filter", "unknown key")), &he))
	body, ok := he.Message.(ErrorBody)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, body.Code)
	assert.Equal(t, "filter", body.Subject)
}

func TestSessionHandler_Lifecycle(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)

	rec := do(e, http.MethodGet, "/api/v1/session/state", "", 42)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/session", "", 42)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started struct {
		UserID   string `json:"userId"`
		Realtime string `json:"realtime"`
		State    struct {
			UnreadCount int `json:"unreadCount"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "42", started.UserID)
	assert.Equal(t, "DISABLED", started.Realtime)
	assert.Equal(t, 1, started.State.UnreadCount)

	rec = do(e, http.MethodPost, "/api/v1/session", "", 42)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sessions.Len())

	rec = do(e, http.MethodGet, "/api/v1/session/state", "", 42)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodDelete, "/api/v1/session", "", 42)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, sessions.Len())
}

func TestSessionHandler_RequiresIdentity(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)

	rec := do(e, http.MethodPost, "/api/v1/session", "", 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperrors.ErrCodeAuthRequired, decodeError(t, rec).Code)
}

func TestSessionHandler_Filters(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/session", "", 42).Code)

	rec := do(e, http.MethodPut, "/api/v1/session/filters/jobs", `{"key":"location","value":"Remote"}`, 42)
	require.Equal(t, http.StatusAccepted, rec.Code)
	s, ok := sessions.Get(42)
	require.True(t, ok)
	assert.Equal(t, "Remote", s.Store.State().FiltersFor(store.CollectionJobs).Get("location"))

	rec = do(e, http.MethodPut, "/api/v1/session/filters/jobs", `{"key":"salary","value":"lots"}`, 42)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrCodeValidation, decodeError(t, rec).Code)

	rec = do(e, http.MethodPut, "/api/v1/session/filters/stories", `{"key":"search","value":"x"}`, 42)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodDelete, "/api/v1/session/filters/jobs", "", 42)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, s.Store.State().FiltersFor(store.CollectionJobs).IsSet("location"))

	rec = do(e, http.MethodPost, "/api/v1/session/collections/jobs/retry", "", 42)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestActionHandler_ToggleSavedJob(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/session", "", 42).Code)

	rec := do(e, http.MethodPost, "/api/v1/jobs/1/save", "", 42)
	require.Equal(t, http.StatusOK, rec.Code)
	var res ToggleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, ToggleResponse{ID: "1", Active: true}, res)

	s, _ := sessions.Get(42)
	assert.True(t, s.Store.State().SavedJobs.Has("1"))
}

func TestActionHandler_RollbackIsReported(t *testing.T) {
	sessions := newTestManager(stubBackend{failSave: true})
	defer sessions.Shutdown()
	e := newTestServer(sessions)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/session", "", 42).Code)

	rec := do(e, http.MethodPost, "/api/v1/jobs/1/save", "", 42)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, apperrors.ErrCodeNetwork, decodeError(t, rec).Code)

	s, _ := sessions.Get(42)
	state := s.Store.State()
	assert.False(t, state.SavedJobs.Has("1"))
	require.NotNil(t, state.Toast)
	assert.Equal(t, store.ToastError, state.Toast.Kind)
}

func TestActionHandler_CreatePost(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/session", "", 42).Code)

	rec := do(e, http.MethodPost, "/api/v1/posts", `{"content":""}`, 42)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/posts", `{"content":"Hiring interns!"}`, 42)
	require.Equal(t, http.StatusCreated, rec.Code)
	var post entity.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "64b0c0ffee", post.ID)

	s, _ := sessions.Get(42)
	assert.Equal(t, []string{"64b0c0ffee"}, s.Store.State().Posts.IDs())
}

func TestActionHandler_WithoutSession(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)

	rec := do(e, http.MethodPost, "/api/v1/notifications/read-all", "", 42)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream_PushesSnapshots(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/session", "", 42).Code)
	s, _ := sessions.Get(42)

	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/stream"
	ws, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User-ID": []string{"42"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	type frame struct {
		Type  string `json:"type"`
		State struct {
			SavedJobs []string `json:"savedJobs"`
		} `json:"state"`
	}

	var first frame
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)

	s.Store.Dispatch(store.SetMemberships{Set: store.SavedJobs, IDs: []string{"2"}})
	for {
		var f frame
		require.NoError(t, ws.ReadJSON(&f))
		if len(f.State.SavedJobs) == 1 {
			assert.Equal(t, []string{"2"}, f.State.SavedJobs)
			break
		}
	}

	sessions.End(42)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}
}

func TestStream_CheckOrigin(t *testing.T) {
	h := NewSessionHandler(nil, nil).AllowOrigins("https://alumni.example.edu")
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://api.example.edu/api/v1/session/stream", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, h.checkOrigin(req("")), "non-browser clients send no Origin")
	assert.True(t, h.checkOrigin(req("http://api.example.edu")))
	assert.True(t, h.checkOrigin(req("https://Alumni.Example.edu")))
	assert.False(t, h.checkOrigin(req("https://evil.example.com")))
	assert.False(t, NewSessionHandler(nil, nil).checkOrigin(req("https://alumni.example.edu")))
	assert.True(t, NewSessionHandler(nil, nil).AllowOrigins("*").checkOrigin(req("https://evil.example.com")))
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	sessions := newTestManager(stubBackend{})
	defer sessions.Shutdown()
	e := newTestServer(sessions)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/api/v1/session", "", 42).Code)

	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{
		"X-User-ID": []string{"42"},
		"Origin":    []string{"https://evil.example.com"},
	})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
