package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/api"
	"github.com/datatram-io/datatram-go/pkg/apperrors"
	"github.com/datatram-io/datatram-go/pkg/cache"
	"github.com/datatram-io/datatram-go/pkg/models"
	"github.com/datatram-io/datatram-go/pkg/notify"
)

// LoadJobService triggers the one-shot backend job that loads a connection's
// source data into its BigQuery destination. The outcome is always announced
// through the notifier, success and failure alike.
type LoadJobService interface {
	// ConnectToBigQuery issues the job request. At most one job per service
	// instance may be in flight; a second call while one is pending returns
	// apperrors.ErrJobInFlight without touching the backend.
	ConnectToBigQuery(ctx context.Context, req models.LoadJobRequest) (*models.LoadJobResult, error)

	// Pending reports whether a job is currently in flight.
	Pending() bool
}

type loadJobService struct {
	client   *api.Client
	cache    *cache.Cache
	notifier notify.Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	pending bool
}

// NewLoadJobService creates a load-job trigger. A nil notifier discards
// announcements.
func NewLoadJobService(client *api.Client, c *cache.Cache, notifier notify.Notifier, logger *zap.Logger) LoadJobService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &loadJobService{
		client:   client,
		cache:    c,
		notifier: notifier,
		logger:   logger.Named("loadjob"),
	}
}

func (s *loadJobService) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *loadJobService) ConnectToBigQuery(ctx context.Context, req models.LoadJobRequest) (*models.LoadJobResult, error) {
	if req.ConnectionID <= 0 {
		return nil, fmt.Errorf("connectionId is required")
	}
	if req.DestinationID <= 0 {
		return nil, fmt.Errorf("destinationId is required")
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil, apperrors.ErrJobInFlight
	}
	s.pending = true
	s.mu.Unlock()

	// The flag drops exactly once, whatever the outcome.
	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	var result models.LoadJobResult
	if err := s.client.PostJSON(ctx, "/connections/connect-to-bigquery", req, &result); err != nil {
		s.notifier.Error("Failed to connect to BigQuery", jobErrorDetail(err))
		s.logger.Error("BigQuery load job failed",
			zap.Int("connection_id", req.ConnectionID),
			zap.Int("destination_id", req.DestinationID),
			zap.Error(err))
		return nil, fmt.Errorf("connect to bigquery: %w", err)
	}

	s.notifier.Success("Data loaded to BigQuery successfully",
		fmt.Sprintf("%d rows processed", result.RowsProcessed))
	s.logger.Info("BigQuery load job finished",
		zap.Int("connection_id", req.ConnectionID),
		zap.Int64("rows_processed", result.RowsProcessed))

	// The attempt is now part of the history feed; force both to refetch.
	s.cache.Invalidate(ResourceConnections)
	s.cache.Invalidate(ResourceHistories)

	return &result, nil
}

// jobErrorDetail prefers the backend's message and falls back to generic
// wording for transport failures.
func jobErrorDetail(err error) string {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return "An unexpected error occurred"
}
