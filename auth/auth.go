package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier checks a Firebase ID token. *auth.Client implements it.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// NewFirebaseVerifier returns the auth client of the default Firebase app.
func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*auth.Client, error) {
	if app == nil {
		var err error
		app, err = firebase.NewApp(ctx, nil)
		if err != nil {
			return nil, err
		}
	}
	return app.Auth(ctx)
}

// Authenticate verifies the bearer ID token of req and returns the user id.
func Authenticate(req *http.Request, v Verifier) (string, error) {
	jwtToken, err := TokenFromRequest(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	token, err := v.VerifyIDToken(req.Context(), jwtToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return token.UID, nil
}
