package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// ContextUserID is the echo context key holding the authenticated alumni id.
const ContextUserID = "userID"

var errMalformedHeader = errors.New("Authorization header must be in Bearer format")

// Identifier resolves a bearer token to an alumni id.
type Identifier func(ctx context.Context, token string) (uint, error)

// Authenticate accepts a request when any identifier resolves its bearer
// token, and stores the alumni id under ContextUserID.
func Authenticate(identifiers ...Identifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			for _, identify := range identifiers {
				userID, err := identify(c.Request().Context(), token)
				if err == nil && userID != 0 {
					c.Set(ContextUserID, userID)
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
	}
}

// UserID returns the authenticated alumni id, if any.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ContextUserID).(uint)
	return id, ok && id != 0
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		// browsers cannot set headers on websocket upgrades
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
		return "", errors.New("Missing Authorization header")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errMalformedHeader
	}
	return parts[1], nil
}

// JWTIdentifier accepts HS256 tokens signed with secret.
func JWTIdentifier(secret string) Identifier {
	return func(_ context.Context, tokenString string) (uint, error) {
		claims := &models.JwtCustomClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			return 0, err
		}
		if !token.Valid {
			return 0, errors.New("invalid token")
		}
		return claims.UserID, nil
	}
}

// JWTAuthMiddleware checks for a valid JWT and extracts the user id.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return Authenticate(JWTIdentifier(secret))
}
