// Package services implements the resource-level client operations: CRUD
// with cache invalidation, the BigQuery load-job trigger, and the
// connection-history feed. Every mutation round-trips through the backend;
// the cache only ever holds reflections of successful fetches.
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/api"
	"github.com/datatram-io/datatram-go/pkg/cache"
	"github.com/datatram-io/datatram-go/pkg/jsonutil"
	"github.com/datatram-io/datatram-go/pkg/models"
)

// Cache invalidation tags, one per resource. A successful mutation
// invalidates exactly its own tag; there is deliberately no cross-resource
// invalidation (deleting a source leaves connections referencing it cached).
const (
	ResourceSources     = "sources"
	ResourceDestination = "destinations"
	ResourceConnections = "connections"
	ResourceHistories   = "connectionHistories"
)

// SourceService manages registered data sources.
type SourceService interface {
	// List returns all sources, served from cache while fresh.
	List(ctx context.Context) ([]models.Source, error)

	// Get returns one source by id. id must be positive.
	Get(ctx context.Context, id int) (*models.Source, error)

	// Create registers a source via multipart form submission and
	// invalidates the sources collection on success.
	Create(ctx context.Context, payload models.CreateSource) (*models.Source, error)

	// Update patches a source by id. Last write wins; there is no version
	// check, so concurrent updates resolve in response order.
	Update(ctx context.Context, id int, payload models.CreateSource) (*models.Source, error)

	// Delete removes a source by id. A failed delete leaves the cache
	// untouched.
	Delete(ctx context.Context, id int) error
}

type sourceService struct {
	client *api.Client
	cache  *cache.Cache
	logger *zap.Logger
}

// NewSourceService creates a source service sharing the client's cache.
func NewSourceService(client *api.Client, c *cache.Cache, logger *zap.Logger) SourceService {
	return &sourceService{
		client: client,
		cache:  c,
		logger: logger.Named("sources"),
	}
}

func (s *sourceService) List(ctx context.Context) ([]models.Source, error) {
	key := cache.CollectionKey(ResourceSources)
	if value, ok, fresh := s.cache.Read(key); ok && fresh {
		return value.([]models.Source), nil
	}

	body, err := s.client.Get(ctx, "/sources/all")
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	sources, err := jsonutil.DecodeCollection[models.Source](body)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	s.cache.Write(key, sources, 0)
	return sources, nil
}

func (s *sourceService) Get(ctx context.Context, id int) (*models.Source, error) {
	if id <= 0 {
		return nil, fmt.Errorf("source id is required")
	}

	key := cache.EntityKey(ResourceSources, id)
	if value, ok, fresh := s.cache.Read(key); ok && fresh {
		source := value.(models.Source)
		return &source, nil
	}

	var source models.Source
	if err := s.client.GetJSON(ctx, fmt.Sprintf("/sources/%d", id), &source); err != nil {
		return nil, fmt.Errorf("get source %d: %w", id, err)
	}

	s.cache.Write(key, source, 0)
	return &source, nil
}

func (s *sourceService) Create(ctx context.Context, payload models.CreateSource) (*models.Source, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var created models.Source
	if err := s.client.PostForm(ctx, "/sources", sourceForm(payload), &created); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	s.cache.Invalidate(ResourceSources)
	s.logger.Info("Created source",
		zap.Int("id", created.ID),
		zap.String("name", created.Name))
	return &created, nil
}

func (s *sourceService) Update(ctx context.Context, id int, payload models.CreateSource) (*models.Source, error) {
	if id <= 0 {
		return nil, fmt.Errorf("source id is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var updated models.Source
	if err := s.client.PatchForm(ctx, fmt.Sprintf("/sources/%d", id), sourceForm(payload), &updated); err != nil {
		return nil, fmt.Errorf("update source %d: %w", id, err)
	}

	s.cache.Invalidate(ResourceSources)
	s.cache.InvalidateKey(cache.EntityKey(ResourceSources, id))
	return &updated, nil
}

func (s *sourceService) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("source id is required")
	}

	if err := s.client.Delete(ctx, fmt.Sprintf("/sources/%d", id)); err != nil {
		return fmt.Errorf("delete source %d: %w", id, err)
	}

	s.cache.Invalidate(ResourceSources)
	return nil
}

// sourceForm serializes a source payload to multipart form data.
func sourceForm(payload models.CreateSource) *api.Form {
	return api.NewForm().
		Field("name", payload.Name).
		Field("host", payload.Host).
		Field("type", string(payload.Type)).
		JSONField("metadata", payload.Metadata).
		File("file", payload.File).
		File("image", payload.Image)
}
