package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/api"
	"github.com/datatram-io/datatram-go/pkg/auth"
	"github.com/datatram-io/datatram-go/pkg/cache"
	"github.com/datatram-io/datatram-go/pkg/jsonutil"
	"github.com/datatram-io/datatram-go/pkg/models"
	"github.com/datatram-io/datatram-go/pkg/retry"
)

// HistoryService is the read-only feed of past load-job attempts, scoped to
// the current session's user.
type HistoryService interface {
	// List returns the user's history, served from cache while fresh.
	List(ctx context.Context) ([]models.ConnectionHistory, error)

	// Refetch fetches the history regardless of cache freshness.
	Refetch(ctx context.Context) ([]models.ConnectionHistory, error)

	// Watch polls the feed in the background until ctx is cancelled,
	// invoking fn with each result. Transient fetch failures are retried
	// with backoff before being reported.
	Watch(ctx context.Context, fn func([]models.ConnectionHistory, error))
}

type historyService struct {
	client          *api.Client
	cache           *cache.Cache
	tokens          auth.TokenSource
	logger          *zap.Logger
	staleTime       time.Duration
	refetchInterval time.Duration
	retryCfg        *retry.Config
}

// HistoryOptions tune the feed's fetch policy. Zero values fall back to the
// 30s staleness / 60s polling the dashboard uses.
type HistoryOptions struct {
	StaleTime       time.Duration
	RefetchInterval time.Duration
	Retry           *retry.Config
}

// NewHistoryService creates a history feed. The token source identifies the
// session user whose attempts are shown.
func NewHistoryService(client *api.Client, c *cache.Cache, tokens auth.TokenSource, logger *zap.Logger, opts HistoryOptions) HistoryService {
	if opts.StaleTime <= 0 {
		opts.StaleTime = 30 * time.Second
	}
	if opts.RefetchInterval <= 0 {
		opts.RefetchInterval = 60 * time.Second
	}
	return &historyService{
		client:          client,
		cache:           c,
		tokens:          tokens,
		logger:          logger.Named("history"),
		staleTime:       opts.StaleTime,
		refetchInterval: opts.RefetchInterval,
		retryCfg:        opts.Retry,
	}
}

func (s *historyService) List(ctx context.Context) ([]models.ConnectionHistory, error) {
	key := cache.CollectionKey(ResourceHistories)
	if value, ok, fresh := s.cache.Read(key); ok && fresh {
		return value.([]models.ConnectionHistory), nil
	}
	return s.Refetch(ctx)
}

func (s *historyService) Refetch(ctx context.Context) ([]models.ConnectionHistory, error) {
	// Best effort: without a parseable session the request goes out
	// unfiltered and unauthenticated, and the backend rejects it.
	userID, err := auth.SessionUser(ctx, s.tokens)
	if err != nil {
		s.logger.Debug("no session user for history filter", zap.Error(err))
	}

	path := "/connection-histories/all"
	if userID != "" {
		path += "?userId=" + url.QueryEscape(userID)
	}

	body, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("list connection histories: %w", err)
	}

	histories, err := jsonutil.DecodeCollection[models.ConnectionHistory](body)
	if err != nil {
		return nil, fmt.Errorf("list connection histories: %w", err)
	}

	// Deployed backends ignore the userId parameter and return everyone's
	// attempts, so the ownership filter has to run here too.
	filtered := make([]models.ConnectionHistory, 0, len(histories))
	for _, h := range histories {
		if h.UserID() == userID {
			filtered = append(filtered, h)
		}
	}

	s.cache.Write(cache.CollectionKey(ResourceHistories), filtered, s.staleTime)
	return filtered, nil
}

func (s *historyService) Watch(ctx context.Context, fn func([]models.ConnectionHistory, error)) {
	fetch := func() ([]models.ConnectionHistory, error) {
		var histories []models.ConnectionHistory
		err := retry.Do(ctx, s.retryCfg, func() error {
			var fetchErr error
			histories, fetchErr = s.Refetch(ctx)
			return fetchErr
		})
		return histories, err
	}

	// Immediate fetch, then fixed-interval background polling regardless of
	// staleness.
	histories, err := fetch()
	fn(histories, err)

	ticker := time.NewTicker(s.refetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			histories, err := fetch()
			if ctx.Err() != nil {
				return
			}
			fn(histories, err)
		}
	}
}
