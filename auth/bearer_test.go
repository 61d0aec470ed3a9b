package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearerToken(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		expectedToken string
		expectedErr   error
	}{
		{
			name:          "Missing Authorization Header",
			authorization: "",
			expectedToken: "",
			expectedErr:   errMissingAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - No Bearer",
			authorization: "Basic some_token",
			expectedToken: "",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - Malformed Bearer Token",
			authorization: "BearerTokenWithoutSpace",
			expectedToken: "",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - Empty Bearer Token",
			authorization: "Bearer    ",
			expectedToken: "",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - Text Before Bearer",
			authorization: "Token Bearer abc",
			expectedToken: "",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Valid Bearer Token",
			authorization: "Bearer some_valid_token",
			expectedToken: "some_valid_token",
			expectedErr:   nil,
		},
		{
			name:          "Valid Bearer Token with extra spaces",
			authorization: "Bearer   some_valid_token   ",
			expectedToken: "some_valid_token",
			expectedErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				Header: http.Header{
					authorizationHeader: []string{tt.authorization},
				},
			}

			token, err := BearerTokenFromRequest(req)
			assert.Equal(t, tt.expectedToken, token)
			assert.Equal(t, tt.expectedErr, err)
		})
	}
}

type verifierFunc func(ctx context.Context, idToken string) (*auth.Token, error)

func (f verifierFunc) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	return f(ctx, idToken)
}

func TestAuthenticate(t *testing.T) {
	verifier := verifierFunc(func(_ context.Context, idToken string) (*auth.Token, error) {
		if idToken != "good" {
			return nil, errors.New("token expired")
		}
		return &auth.Token{UID: "u1"}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(authorizationHeader, "Bearer good")
	uid, err := Authenticate(req, verifier)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	req.Header.Set(authorizationHeader, "Bearer bad")
	_, err = Authenticate(req, verifier)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Del(authorizationHeader)
	_, err = Authenticate(req, verifier)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, errMissingAuthorizationHeader)
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		target        string
		authorization string
		expectedToken string
		expectedErr   error
	}{
		{name: "header wins", method: http.MethodGet, target: "/?access_token=q", authorization: "Bearer h", expectedToken: "h"},
		{name: "query on stream", method: http.MethodGet, target: "/?chat_id=c1&access_token=q", expectedToken: "q"},
		{name: "query ignored on post", method: http.MethodPost, target: "/?access_token=q", expectedErr: errMissingAuthorizationHeader},
		{name: "blank query", method: http.MethodGet, target: "/?access_token=+", expectedErr: errMissingAuthorizationHeader},
		{name: "invalid header not replaced by query", method: http.MethodGet, target: "/?access_token=q", authorization: "Basic x", expectedErr: errInvalidAuthorizationHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.authorization != "" {
				req.Header.Set(authorizationHeader, tt.authorization)
			}
			token, err := TokenFromRequest(req)
			assert.Equal(t, tt.expectedToken, token)
			assert.Equal(t, tt.expectedErr, err)
		})
	}
}
