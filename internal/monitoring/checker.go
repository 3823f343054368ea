package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/plateful/pricing-engine/internal/configstore"
)

// Pinger is the slice of the store the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs a periodic health check in the background: it pings the
// config store and logs cache effectiveness so operators can spot a cold
// or thrashing cache without scraping anything.
type Checker struct {
	store    Pinger
	cache    *configstore.CachedReader
	interval time.Duration
}

// NewChecker creates a background health checker. A non-positive interval
// falls back to five minutes.
func NewChecker(store Pinger, cache *configstore.CachedReader, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{store: store, cache: cache, interval: interval}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.store.Ping(pingCtx); err != nil {
		log.Error("monitoring: config store unreachable", zap.Error(err))
		return
	}

	if c.cache != nil {
		stats := c.cache.Stats()
		log.Info("monitoring: health check ok",
			zap.Int("cache_entries", stats.Entries),
			zap.Int64("cache_hits", stats.Hits),
			zap.Int64("cache_misses", stats.Misses),
			zap.Float64("cache_hit_rate", stats.HitRate),
		)
		return
	}
	log.Info("monitoring: health check ok")
}
