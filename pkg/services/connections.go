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

// ConnectionService manages the links between sources and destinations.
// Unlike sources and destinations, connections travel as plain JSON.
type ConnectionService interface {
	List(ctx context.Context) ([]models.Connection, error)
	Get(ctx context.Context, id int) (*models.Connection, error)
	Create(ctx context.Context, payload models.CreateConnection) (*models.Connection, error)
	Update(ctx context.Context, id int, payload models.UpdateConnection) (*models.Connection, error)
	Delete(ctx context.Context, id int) error
}

type connectionService struct {
	client *api.Client
	cache  *cache.Cache
	logger *zap.Logger
}

// NewConnectionService creates a connection service sharing the client's
// cache.
func NewConnectionService(client *api.Client, c *cache.Cache, logger *zap.Logger) ConnectionService {
	return &connectionService{
		client: client,
		cache:  c,
		logger: logger.Named("connections"),
	}
}

func (s *connectionService) List(ctx context.Context) ([]models.Connection, error) {
	key := cache.CollectionKey(ResourceConnections)
	if value, ok, fresh := s.cache.Read(key); ok && fresh {
		return value.([]models.Connection), nil
	}

	body, err := s.client.Get(ctx, "/connections/all")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	connections, err := jsonutil.DecodeCollection[models.Connection](body)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	s.cache.Write(key, connections, 0)
	return connections, nil
}

func (s *connectionService) Get(ctx context.Context, id int) (*models.Connection, error) {
	if id <= 0 {
		return nil, fmt.Errorf("connection id is required")
	}

	key := cache.EntityKey(ResourceConnections, id)
	if value, ok, fresh := s.cache.Read(key); ok && fresh {
		connection := value.(models.Connection)
		return &connection, nil
	}

	var connection models.Connection
	if err := s.client.GetJSON(ctx, fmt.Sprintf("/connections/%d", id), &connection); err != nil {
		return nil, fmt.Errorf("get connection %d: %w", id, err)
	}

	s.cache.Write(key, connection, 0)
	return &connection, nil
}

func (s *connectionService) Create(ctx context.Context, payload models.CreateConnection) (*models.Connection, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var created models.Connection
	if err := s.client.PostJSON(ctx, "/connections", payload, &created); err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	s.cache.Invalidate(ResourceConnections)
	s.logger.Info("Created connection",
		zap.Int("id", created.ID),
		zap.Int("source_id", created.SourceID),
		zap.Int("destination_id", created.DestinationID))
	return &created, nil
}

func (s *connectionService) Update(ctx context.Context, id int, payload models.UpdateConnection) (*models.Connection, error) {
	if id <= 0 {
		return nil, fmt.Errorf("connection id is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var updated models.Connection
	if err := s.client.PatchJSON(ctx, fmt.Sprintf("/connections/%d", id), payload, &updated); err != nil {
		return nil, fmt.Errorf("update connection %d: %w", id, err)
	}

	s.cache.Invalidate(ResourceConnections)
	s.cache.InvalidateKey(cache.EntityKey(ResourceConnections, id))
	return &updated, nil
}

func (s *connectionService) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("connection id is required")
	}

	if err := s.client.Delete(ctx, fmt.Sprintf("/connections/%d", id)); err != nil {
		return fmt.Errorf("delete connection %d: %w", id, err)
	}

	s.cache.Invalidate(ResourceConnections)
	return nil
}
