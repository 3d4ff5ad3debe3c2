package config

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned when a token carries no usable subject claim.
var ErrNoSubject = errors.New("token has no subject claim")

// UserIDFromToken extracts the user id (the "sub" claim) from a bearer token.
// The signature is not verified: the backend does that on every request, the
// client only needs the id to key per-user preferences.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("failed to read subject: %w", err)
	}
	if sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}

// UserID returns the user id for the configured token, or "anonymous" when
// the token is missing or opaque.
func (cfg *Config) UserID() string {
	if id, err := UserIDFromToken(cfg.Token); err == nil {
		return id
	}
	return "anonymous"
}
