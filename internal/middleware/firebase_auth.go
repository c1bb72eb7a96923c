package middleware

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/anonto42/alumni-connect/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

// AlumniResolver maps a Firebase UID to the linked alumni row.
type AlumniResolver interface {
	GetAlumniByFirebaseUID(ctx context.Context, firebaseUID string) (*models.Alumni, error)
}

// FirebaseIdentifier verifies Firebase ID tokens. Only users who signed in
// through /auth/firebase-login at least once have a linked alumni row.
func FirebaseIdentifier(verifier firebase.TokenVerifier, alumni AlumniResolver) Identifier {
	return func(ctx context.Context, idToken string) (uint, error) {
		token, err := verifier.VerifyIDToken(ctx, idToken)
		if err != nil {
			return 0, err
		}
		user, err := alumni.GetAlumniByFirebaseUID(ctx, token.UID)
		if err != nil {
			return 0, err
		}
		return user.ID, nil
	}
}

// FirebaseAuthMiddleware creates an Echo middleware to verify Firebase ID tokens
func FirebaseAuthMiddleware(verifier firebase.TokenVerifier, alumni AlumniResolver) echo.MiddlewareFunc {
	return Authenticate(FirebaseIdentifier(verifier, alumni))
}
