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

// DestinationService manages configured data targets.
type DestinationService interface {
	List(ctx context.Context) ([]models.Destination, error)
	Get(ctx context.Context, id int) (*models.Destination, error)
	Create(ctx context.Context, payload models.CreateDestination) (*models.Destination, error)
	Update(ctx context.Context, id int, payload models.CreateDestination) (*models.Destination, error)
	Delete(ctx context.Context, id int) error
}

type destinationService struct {
	client *api.Client
	cache  *cache.Cache
	logger *zap.Logger
}

// NewDestinationService creates a destination service sharing the client's
// cache.
func NewDestinationService(client *api.Client, c *cache.Cache, logger *zap.Logger) DestinationService {
	return &destinationService{
		client: client,
		cache:  c,
		logger: logger.Named("destinations"),
	}
}

func (s *destinationService) List(ctx context.Context) ([]models.Destination, error) {
	key := cache.CollectionKey(ResourceDestination)
	if value, ok, fresh := s.cache.Read(key); ok && fresh {
		return value.([]models.Destination), nil
	}

	body, err := s.client.Get(ctx, "/destinations/all")
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}

	destinations, err := jsonutil.DecodeCollection[models.Destination](body)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}

	s.cache.Write(key, destinations, 0)
	return destinations, nil
}

func (s *destinationService) Get(ctx context.Context, id int) (*models.Destination, error) {
	if id <= 0 {
		return nil, fmt.Errorf("destination id is required")
	}

	key := cache.EntityKey(ResourceDestination, id)
	if value, ok, fresh := s.cache.Read(key); ok && fresh {
		destination := value.(models.Destination)
		return &destination, nil
	}

	var destination models.Destination
	if err := s.client.GetJSON(ctx, fmt.Sprintf("/destinations/%d", id), &destination); err != nil {
		return nil, fmt.Errorf("get destination %d: %w", id, err)
	}

	s.cache.Write(key, destination, 0)
	return &destination, nil
}

func (s *destinationService) Create(ctx context.Context, payload models.CreateDestination) (*models.Destination, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var created models.Destination
	if err := s.client.PostForm(ctx, "/destinations", destinationForm(payload), &created); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	s.cache.Invalidate(ResourceDestination)
	s.logger.Info("Created destination",
		zap.Int("id", created.ID),
		zap.String("name", created.Name),
		zap.String("type", string(created.Type)))
	return &created, nil
}

func (s *destinationService) Update(ctx context.Context, id int, payload models.CreateDestination) (*models.Destination, error) {
	if id <= 0 {
		return nil, fmt.Errorf("destination id is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var updated models.Destination
	if err := s.client.PatchForm(ctx, fmt.Sprintf("/destinations/%d", id), destinationForm(payload), &updated); err != nil {
		return nil, fmt.Errorf("update destination %d: %w", id, err)
	}

	s.cache.Invalidate(ResourceDestination)
	s.cache.InvalidateKey(cache.EntityKey(ResourceDestination, id))
	return &updated, nil
}

func (s *destinationService) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("destination id is required")
	}

	if err := s.client.Delete(ctx, fmt.Sprintf("/destinations/%d", id)); err != nil {
		return fmt.Errorf("delete destination %d: %w", id, err)
	}

	s.cache.Invalidate(ResourceDestination)
	return nil
}

// destinationForm serializes a destination payload to multipart form data.
func destinationForm(payload models.CreateDestination) *api.Form {
	return api.NewForm().
		Field("name", payload.Name).
		Field("type", string(payload.Type)).
		Field("projectId", payload.ProjectID).
		Field("url", payload.URL).
		Field("datasetId", payload.DatasetID).
		Field("targetTableName", payload.TargetTableName).
		JSONField("metadata", payload.Metadata).
		File("image", payload.Image)
}
