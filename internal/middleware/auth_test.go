package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, secret string, userID uint, expires time.Time) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func serve(mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, uint, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen uint
	err := mw(func(c echo.Context) error {
		seen, _ = UserID(c)
		return c.NoContent(http.StatusNoContent)
	})(c)
	return rec, seen, err
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestJWTAuthMiddleware(t *testing.T) {
	mw := JWTAuthMiddleware("secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "secret", 42, time.Now().Add(time.Hour)))
	rec, userID, err := serve(mw, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, uint(42), userID)

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Token abc",
		"wrong secret": "Bearer " + signed(t, "other", 42, time.Now().Add(time.Hour)),
		"expired":      "Bearer " + signed(t, "secret", 42, time.Now().Add(-time.Hour)),
		"no user":      "Bearer " + signed(t, "secret", 0, time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			_, _, err := serve(mw, req)
			assert.Equal(t, http.StatusUnauthorized, statusOf(err))
		})
	}
}

func TestAuthenticate_QueryTokenForWebsocket(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?access_token="+signed(t, "secret", 7, time.Now().Add(time.Hour)), nil)
	_, userID, err := serve(JWTAuthMiddleware("secret"), req)
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)
}

type fakeVerifier struct{ uid string }

func (f fakeVerifier) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if token != "firebase-token" {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: f.uid}, nil
}

type fakeResolver map[string]uint

func (f fakeResolver) GetAlumniByFirebaseUID(_ context.Context, uid string) (*models.Alumni, error) {
	id, ok := f[uid]
	if !ok {
		return nil, errors.New("record not found")
	}
	return &models.Alumni{ID: id}, nil
}

func TestAuthenticate_FallsThroughIdentifiers(t *testing.T) {
	mw := Authenticate(
		JWTIdentifier("secret"),
		FirebaseIdentifier(fakeVerifier{uid: "fb-1"}, fakeResolver{"fb-1": 9}),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer firebase-token")
	_, userID, err := serve(mw, req)
	require.NoError(t, err)
	assert.Equal(t, uint(9), userID)

	unlinked := FirebaseAuthMiddleware(fakeVerifier{uid: "fb-2"}, fakeResolver{})
	_, _, err = serve(unlinked, req)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}
