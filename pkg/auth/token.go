// Package auth supplies session tokens to outbound requests and extracts
// session claims from them. Tokens are issued by the identity provider;
// nothing here validates signatures, that is the backend's job.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// TokenSource yields the current session token. Implementations may hit the
// identity provider, so calls take a context. An empty token with a nil
// error means "no session": the request proceeds unauthenticated and the
// backend rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to a TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns a TokenSource that always yields the given token.
func Static(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// FromEnv returns a TokenSource reading the token from an environment
// variable on every call, so rotated tokens are picked up without restart.
func FromEnv(name string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(os.Getenv(name)), nil
	})
}

// Cached wraps a TokenSource and reuses its token until the token's exp
// claim, minus leeway. Tokens without an exp claim are cached for leeway.
type cachedSource struct {
	src    TokenSource
	leeway time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Cached returns a caching wrapper around src.
func Cached(src TokenSource, leeway time.Duration) TokenSource {
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	return &cachedSource{src: src, leeway: leeway}
}

func (c *cachedSource) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}

	token, err := c.src.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh session token: %w", err)
	}
	if token == "" {
		c.token = ""
		return "", nil
	}

	expiresAt := time.Now().Add(c.leeway)
	if claims, err := ParseSessionClaims(token); err == nil && claims.ExpiresAt != nil {
		if until := claims.ExpiresAt.Time.Add(-c.leeway); until.After(time.Now()) {
			expiresAt = until
		}
	}

	c.token = token
	c.expiresAt = expiresAt
	return token, nil
}
