package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the subset of identity-provider claims the client cares
// about. It embeds RegisteredClaims for the standard fields (sub, exp, iss).
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// ParseSessionClaims decodes a session token without verifying its
// signature. The client only needs claim values for display and filtering;
// verification happens server-side.
func ParseSessionClaims(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	return claims, nil
}

// SessionUser returns the current session's user id (the sub claim).
// Returns an error when there is no session or the token is malformed.
func SessionUser(ctx context.Context, src TokenSource) (string, error) {
	token, err := src.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("no active session")
	}

	claims, err := ParseSessionClaims(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("session token has no subject")
	}
	return claims.Subject, nil
}
