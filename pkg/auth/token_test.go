package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatram-io/datatram-go/pkg/testhelpers"
)

func TestStatic(t *testing.T) {
	token, err := Static("tok").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TEST_DATATRAM_TOKEN", "  env-tok \n")
	token, err := FromEnv("TEST_DATATRAM_TOKEN").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-tok", token)

	t.Setenv("TEST_DATATRAM_TOKEN", "")
	token, err = FromEnv("TEST_DATATRAM_TOKEN").Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestCached_ReusesUntilExpiry(t *testing.T) {
	calls := 0
	jwt := testhelpers.GenerateTestJWTWithExpiry("user_1", "", time.Now().Add(time.Hour))
	src := Cached(TokenSourceFunc(func(context.Context) (string, error) {
		calls++
		return jwt, nil
	}), time.Second)

	for i := 0; i < 3; i++ {
		token, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, jwt, token)
	}
	assert.Equal(t, 1, calls, "token within expiry should be fetched once")
}

func TestCached_RefetchesExpired(t *testing.T) {
	calls := 0
	expired := testhelpers.GenerateTestJWTWithExpiry("user_1", "", time.Now().Add(-time.Hour))
	src := Cached(TokenSourceFunc(func(context.Context) (string, error) {
		calls++
		return expired, nil
	}), time.Second)

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired token must not be served from cache")
}

func TestCached_EmptyTokenNotCached(t *testing.T) {
	calls := 0
	src := Cached(TokenSourceFunc(func(context.Context) (string, error) {
		calls++
		return "", nil
	}), time.Minute)

	for i := 0; i < 2; i++ {
		token, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Empty(t, token)
	}
	assert.Equal(t, 2, calls)
}

func TestSessionUser(t *testing.T) {
	src := Static(testhelpers.GenerateTestJWT("user_42", "u@example.com"))
	user, err := SessionUser(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "user_42", user)
}

func TestSessionUser_NoSession(t *testing.T) {
	_, err := SessionUser(context.Background(), Static(""))
	assert.Error(t, err)
}

func TestParseSessionClaims(t *testing.T) {
	claims, err := ParseSessionClaims(testhelpers.GenerateTestJWT("user_7", "seven@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "user_7", claims.Subject)
	assert.Equal(t, "seven@example.com", claims.Email)

	_, err = ParseSessionClaims("not-a-jwt")
	assert.Error(t, err)
}
