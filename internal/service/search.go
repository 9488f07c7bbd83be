package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/metrics"
	"github.com/ristijajohannesefestival/pela/internal/model"
	"github.com/ristijajohannesefestival/pela/internal/store"
	"go.uber.org/zap"
)

// SearchService proxies catalog searches to the provider behind a shared
// fixed-window rate limit. The window record lives in the key-value store
// under a single global key: it guards the provider's quota, so every venue
// and every replica draws from the same budget.
type SearchService struct {
	store    store.Store
	provider Provider
	limit    int
	window   time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewSearchService creates a new search service. m may be nil.
func NewSearchService(st store.Store, provider Provider, limit int, window time.Duration, m *metrics.Metrics, logger *zap.Logger) *SearchService {
	return &SearchService{
		store:    st,
		provider: provider,
		limit:    limit,
		window:   window,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Search validates the query, charges the rate-limit window and delegates to
// the provider.
func (s *SearchService) Search(ctx context.Context, query string) ([]model.Song, error) {
	if query == "" {
		return nil, apperrors.Validation("Query parameter required")
	}

	if err := s.chargeWindow(ctx); err != nil {
		return nil, err
	}

	return s.provider.Search(ctx, query)
}

// chargeWindow counts this call against the shared window, resetting it
// lazily on the first call after resetAt has passed. The read and write are
// separate store operations; concurrent searches can overshoot the cap by a
// few calls, which is acceptable for a quota guard.
func (s *SearchService) chargeWindow(ctx context.Context) error {
	now := s.now().UnixMilli()

	var window model.RateLimitWindow
	err := s.store.Get(ctx, model.SearchRateLimitKey, &window)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to read rate-limit window: %w", err)
	}

	if err == nil && window.Count > 0 && window.ResetAt > now {
		if window.Count >= s.limit {
			retryAfter := int((window.ResetAt - now + 999) / 1000)
			if s.metrics != nil {
				s.metrics.RecordSearchRateLimited()
			}
			s.logger.Warn("search rejected by rate limit",
				zap.Int("count", window.Count),
				zap.Int("retry_after_seconds", retryAfter),
			)
			return &apperrors.RateLimitedError{RetryAfter: retryAfter}
		}
		return s.store.Set(ctx, model.SearchRateLimitKey, model.RateLimitWindow{
			Count:   window.Count + 1,
			ResetAt: window.ResetAt,
		})
	}

	return s.store.Set(ctx, model.SearchRateLimitKey, model.RateLimitWindow{
		Count:   1,
		ResetAt: now + s.window.Milliseconds(),
	})
}
