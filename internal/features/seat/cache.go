package seat

import (
	"context"
	"errors"

	"twol-crm/internal/cache"
	"twol-crm/internal/config"
	"twol-crm/internal/metrics"

	"go.uber.org/zap"
)

// EffectiveCache keeps resolved seat permissions keyed by seat id.
type EffectiveCache struct {
	store  *cache.Cache[grant]
	logger *zap.Logger
}

func NewEffectiveCache(client *cache.Client, cfg *config.Config, logger *zap.Logger) *EffectiveCache {
	return &EffectiveCache{
		store:  cache.New[grant](client, "seat_permissions", cfg.CacheTTL),
		logger: logger,
	}
}

func (c *EffectiveCache) get(ctx context.Context, seatID string) (grant, bool) {
	g, err := c.store.Get(ctx, seatID)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("permission cache read failed", zap.String("seat_id", seatID), zap.Error(err))
		}
		metrics.PermissionCacheLookupsTotal.WithLabelValues("miss").Inc()
		return grant{}, false
	}
	metrics.PermissionCacheLookupsTotal.WithLabelValues("hit").Inc()
	return *g, true
}

func (c *EffectiveCache) put(ctx context.Context, seatID string, g grant) {
	if err := c.store.Set(ctx, seatID, g); err != nil {
		c.logger.Warn("permission cache write failed", zap.String("seat_id", seatID), zap.Error(err))
	}
}

// InvalidateSeats drops the cached permissions of seatIDs.
func (c *EffectiveCache) InvalidateSeats(ctx context.Context, seatIDs ...string) error {
	return c.store.Delete(ctx, seatIDs...)
}
