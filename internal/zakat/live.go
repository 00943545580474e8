package zakat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mizan/internal/methodology"
	"mizan/internal/zakat/metrics"
	id "mizan/pkg/domain"
)

// LiveService serves live wealth snapshots through a short-TTL Redis
// read-through cache. It registers as a wealth change listener so writes
// invalidate the user's cached snapshots immediately instead of waiting for
// the TTL.
type LiveService struct {
	engine   *Engine
	registry *methodology.Registry
	cache    redis.UniversalClient
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewLiveService constructs the live wealth service. cache may be nil, in
// which case every read recomputes.
func NewLiveService(engine *Engine, registry *methodology.Registry, cache redis.UniversalClient, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *LiveService {
	return &LiveService{
		engine:   engine,
		registry: registry,
		cache:    cache,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
	}
}

func cacheKey(userID id.UserID, methodologyID methodology.ID) string {
	return fmt.Sprintf("mizan:live:%s:%s", userID, methodologyID)
}

// Live returns the user's current assessment, served from cache when a fresh
// snapshot exists.
func (s *LiveService) Live(ctx context.Context, userID id.UserID, methodologyID methodology.ID, now time.Time) (*Calculation, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey(userID, methodologyID)).Bytes()
		if err == nil {
			var calc Calculation
			if err := json.Unmarshal(raw, &calc); err == nil {
				s.metrics.LiveCacheHits.Inc()
				return &calc, nil
			}
			s.logger.WarnContext(ctx, "discarding undecodable cached snapshot", "user_id", userID)
		} else if !errors.Is(err, redis.Nil) {
			// Cache trouble degrades to a recompute, never to a failure.
			s.logger.WarnContext(ctx, "live wealth cache read failed", "error", err)
		}
	}

	s.metrics.LiveCacheMiss.Inc()
	calc, err := s.engine.Calculate(ctx, userID, methodologyID, now)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && calc.Complete {
		raw, err := json.Marshal(calc)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey(userID, methodologyID), raw, s.ttl).Err(); err != nil {
				s.logger.WarnContext(ctx, "live wealth cache write failed", "error", err)
			}
		}
	}
	return calc, nil
}

// WealthChanged drops every cached snapshot for the user. Implements the
// wealth service's ChangeListener.
func (s *LiveService) WealthChanged(ctx context.Context, userID id.UserID) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(s.registry.List()))
	for _, m := range s.registry.List() {
		keys = append(keys, cacheKey(userID, m.ID))
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.WarnContext(ctx, "live wealth cache invalidation failed",
			"user_id", userID,
			"error", err,
		)
	}
}
