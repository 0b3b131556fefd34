package closure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Registry answers whether an accounting month is closed for a division.
// Lookups are cached in Redis; cache failures fall back to the database,
// database failures propagate so callers fail closed (period treated as
// not eligible, never eligible by default).
type Registry struct {
	repo   Repository
	cache  *redis.Client
	logger *slog.Logger
}

// NewRegistry constructs a Registry.
func NewRegistry(repo Repository, cache *redis.Client, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, cache: cache, logger: logger}
}

// IsClosed reports whether (division, year, month) has been closed.
func (s *Registry) IsClosed(ctx context.Context, division string, year, month int) (bool, error) {
	key := cacheKey(division, year, month)
	if s.cache != nil {
		val, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			return val == "1", nil
		}
		if err != redis.Nil {
			s.logger.Warn("closure cache read", slog.Any("error", err))
		}
	}
	closed, err := s.repo.Exists(ctx, division, year, month)
	if err != nil {
		return false, fmt.Errorf("closure: registry lookup: %w", err)
	}
	if s.cache != nil {
		// Only positive answers are cached: a month can become closed later,
		// but never reopens.
		if closed {
			if err := s.cache.Set(ctx, key, "1", 0).Err(); err != nil {
				s.logger.Warn("closure cache write", slog.Any("error", err))
			}
		}
	}
	return closed, nil
}

// MarkClosed registers a closed month. This models the month-close process,
// which is the sole writer of the registry.
func (s *Registry) MarkClosed(ctx context.Context, in MarkClosedInput) (ClosedPeriod, error) {
	if err := in.Validate(); err != nil {
		return ClosedPeriod{}, err
	}
	period, err := s.repo.Insert(ctx, in)
	if err != nil {
		return ClosedPeriod{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(in.Division, in.Year, in.Month), "1", 0).Err(); err != nil {
			s.logger.Warn("closure cache write", slog.Any("error", err))
		}
	}
	return period, nil
}

// ListByDivision returns closed periods for a division, newest first.
func (s *Registry) ListByDivision(ctx context.Context, division string, limit, offset int) ([]ClosedPeriod, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByDivision(ctx, division, limit, offset)
}

func cacheKey(division string, year, month int) string {
	return fmt.Sprintf("closure:%s:%s", division, MonthKey(year, month))
}
