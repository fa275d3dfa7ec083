package auth

import (
	"errors"
	"strings"
)

const bearerScheme = "bearer"

var (
	ErrMissingToken        = errors.New("auth: bearer token required")
	ErrMalformedHeader     = errors.New("auth: authorization header is not a bearer credential")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrExpiredToken        = errors.New("auth: token expired")
	ErrMissingSubject      = errors.New("auth: token subject required")
	ErrProviderUnavailable = errors.New("auth: identity provider unavailable")
)

// Caller is the verified identity behind a bearer credential.
type Caller struct {
	ID    string
	Email string
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", ErrMissingToken
	}
	scheme, token, found := strings.Cut(trimmed, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
