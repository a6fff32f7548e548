package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/apperrors"
	"github.com/datatram-io/datatram-go/pkg/models"
	"github.com/datatram-io/datatram-go/pkg/services"
)

func seedPair(f *fixture) (models.Source, models.Destination) {
	src := f.backend.SeedSource(models.Source{Name: "orders.csv", Type: models.SourceTypeCSV, Image: "csv.png"})
	dst := f.backend.SeedDestination(models.Destination{
		Name:            "Acme BQ",
		Type:            models.DestinationTypeBigQuery,
		DatasetID:       "analytics",
		TargetTableName: "orders",
	})
	return src, dst
}

func TestConnectionCreateDenormalizesNames(t *testing.T) {
	f := newFixture(t)
	src, dst := seedPair(f)
	svc := services.NewConnectionService(f.client, f.cache, zap.NewNop())

	created, err := svc.Create(context.Background(), models.CreateConnection{
		SourceID:      src.ID,
		DestinationID: dst.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "orders.csv", created.SourceName)
	assert.Equal(t, "Acme BQ", created.DestinationName)
	assert.Equal(t, "csv.png", created.SourceImage)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

func TestConnectionCreateRequiresBothSides(t *testing.T) {
	f := newFixture(t)
	svc := services.NewConnectionService(f.client, f.cache, zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateConnection{SourceID: 1})
	require.Error(t, err)
	_, err = svc.Create(context.Background(), models.CreateConnection{DestinationID: 1})
	require.Error(t, err)
	assert.Equal(t, 0, f.backend.Requests("POST /connections"))
}

func TestConnectionUpdateRetargetsSource(t *testing.T) {
	f := newFixture(t)
	src, dst := seedPair(f)
	other := f.backend.SeedSource(models.Source{Name: "refunds.csv", Type: models.SourceTypeCSV})
	conn := f.backend.SeedConnection(models.Connection{
		SourceID:      src.ID,
		DestinationID: dst.ID,
		SourceName:    src.Name,
	})
	svc := services.NewConnectionService(f.client, f.cache, zap.NewNop())

	updated, err := svc.Update(context.Background(), conn.ID, models.UpdateConnection{
		SourceID: &other.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.SourceID)
	assert.Equal(t, "refunds.csv", updated.SourceName)
}

func TestConnectionUpdateRejectsEmptyPayload(t *testing.T) {
	f := newFixture(t)
	svc := services.NewConnectionService(f.client, f.cache, zap.NewNop())

	_, err := svc.Update(context.Background(), 1, models.UpdateConnection{})
	require.Error(t, err)
}

func TestConnectionDeleteMissing(t *testing.T) {
	f := newFixture(t)
	svc := services.NewConnectionService(f.client, f.cache, zap.NewNop())

	err := svc.Delete(context.Background(), 42)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConnectionListParsesBareArray(t *testing.T) {
	f := newFixture(t)
	src, dst := seedPair(f)
	f.backend.SeedConnection(models.Connection{SourceID: src.ID, DestinationID: dst.ID})
	svc := services.NewConnectionService(f.client, f.cache, zap.NewNop())

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, src.ID, listed[0].SourceID)
}
