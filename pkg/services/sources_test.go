package services_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/apperrors"
	"github.com/datatram-io/datatram-go/pkg/models"
	"github.com/datatram-io/datatram-go/pkg/services"
)

func TestSourceListServedFromCache(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedSource(models.Source{Name: "orders.csv", Type: models.SourceTypeCSV})
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.backend.Requests("GET /sources/all"),
		"second list should hit the cache, not the backend")
}

func TestSourceCreateInvalidatesList(t *testing.T) {
	f := newFixture(t)
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	initial, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, initial)

	created, err := svc.Create(context.Background(), models.CreateSource{
		Name: "orders.csv",
		Type: models.SourceTypeCSV,
		File: &models.FileUpload{
			Filename: "orders.csv",
			Content:  strings.NewReader("id,total\n1,9.50\n"),
		},
		Metadata: map[string]any{"delimiter": ","},
	})
	require.NoError(t, err)
	assert.Equal(t, "orders.csv", created.Name)
	assert.Equal(t, "orders.csv", created.File)

	after, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, created.ID, after[0].ID)
	assert.Equal(t, 2, f.backend.Requests("GET /sources/all"),
		"create should force the next list back to the backend")
}

func TestSourceCreateRequiresName(t *testing.T) {
	f := newFixture(t)
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateSource{Type: models.SourceTypeCSV})
	require.Error(t, err)
	assert.Equal(t, 0, f.backend.Requests("POST /sources"),
		"validation failures must not reach the backend")
}

func TestSourceUpdateInvalidatesBothKeys(t *testing.T) {
	f := newFixture(t)
	seeded := f.backend.SeedSource(models.Source{Name: "before", Type: models.SourceTypeCSV})
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	_, err := svc.List(context.Background())
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), seeded.ID)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), seeded.ID, models.CreateSource{Name: "after"})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)

	fetched, err := svc.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", fetched.Name)
	assert.Equal(t, 2, f.backend.Requests("GET /sources/"+strconv.Itoa(seeded.ID)),
		"updating must stale the entity entry")
}

func TestSourceDelete(t *testing.T) {
	f := newFixture(t)
	seeded := f.backend.SeedSource(models.Source{Name: "doomed", Type: models.SourceTypeJSON})
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), seeded.ID))
	assert.False(t, f.backend.HasSource(seeded.ID))

	after, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestSourceDeleteMissingLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedSource(models.Source{Name: "survivor", Type: models.SourceTypeCSV})
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	cached, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)

	err = svc.Delete(context.Background(), 42)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	again, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cached, again)
	assert.Equal(t, 1, f.backend.Requests("GET /sources/all"),
		"failed delete must not invalidate the cached list")
}

func TestSourceGetRejectsNonPositiveID(t *testing.T) {
	f := newFixture(t)
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	_, err := svc.Get(context.Background(), 0)
	require.Error(t, err)
	_, err = svc.Get(context.Background(), -3)
	require.Error(t, err)
}

func TestSourceGetMissingMapsToNotFound(t *testing.T) {
	f := newFixture(t)
	svc := services.NewSourceService(f.client, f.cache, zap.NewNop())

	_, err := svc.Get(context.Background(), 999)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	var apiErr *apperrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
}

