package auth

import (
	"errors"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	// browsers cannot set headers on an EventSource, streams pass the token in the query
	accessTokenParam = "access_token"
)

var (
	errMissingAuthorizationHeader = errors.New("missing Authorization header")
	errInvalidAuthorizationHeader = errors.New("invalid Authorization header")
)

// BearerTokenFromRequest returns the token of an "Authorization: Bearer <token>" header.
func BearerTokenFromRequest(r *http.Request) (string, error) {
	reqToken := r.Header.Get(authorizationHeader)
	if reqToken == "" {
		return "", errMissingAuthorizationHeader
	}
	token, ok := strings.CutPrefix(reqToken, bearerPrefix)
	if !ok || strings.Contains(token, bearerPrefix) {
		return "", errInvalidAuthorizationHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errInvalidAuthorizationHeader
	}
	return token, nil
}

// TokenFromRequest prefers the Authorization header. A GET request without one may
// carry the token in the access_token query parameter.
func TokenFromRequest(r *http.Request) (string, error) {
	token, err := BearerTokenFromRequest(r)
	if !errors.Is(err, errMissingAuthorizationHeader) || r.Method != http.MethodGet {
		return token, err
	}
	if token := strings.TrimSpace(r.URL.Query().Get(accessTokenParam)); token != "" {
		return token, nil
	}
	return "", err
}
