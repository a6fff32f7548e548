package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/api"
	"github.com/datatram-io/datatram-go/pkg/auth"
	"github.com/datatram-io/datatram-go/pkg/cache"
	"github.com/datatram-io/datatram-go/pkg/testhelpers"
)

type fixture struct {
	backend *testhelpers.StubBackend
	client  *api.Client
	cache   *cache.Cache
	tokens  auth.TokenSource
}

// staticTokens builds a token source for an arbitrary session user.
func staticTokens(t *testing.T, sub string) auth.TokenSource {
	t.Helper()
	return auth.Static(testhelpers.GenerateTestJWT(sub, ""))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := testhelpers.NewStubBackend()
	t.Cleanup(backend.Close)

	tokens := auth.Static(testhelpers.GenerateTestJWT("user-1", "owner@datatram.io"))
	client, err := api.New(backend.URL(), tokens, zap.NewNop())
	require.NoError(t, err)

	return &fixture{
		backend: backend,
		client:  client,
		cache:   cache.New(),
		tokens:  tokens,
	}
}
