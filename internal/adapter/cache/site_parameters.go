package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/evfleetops/alloc-core/internal/ports"
)

// CachedSiteParameters decorates a SiteParameterRepository with a
// short-lived cache, so repeated runs against the same site within a
// run window don't re-read the parameter table every time.
type CachedSiteParameters struct {
	repo  ports.SiteParameterRepository
	cache ports.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedSiteParameters(repo ports.SiteParameterRepository, cache ports.Cache, ttl time.Duration, log *zap.Logger) *CachedSiteParameters {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedSiteParameters{repo: repo, cache: cache, ttl: ttl, log: log}
}

func (c *CachedSiteParameters) LoadSiteParameters(ctx context.Context, siteID string) (map[string]string, error) {
	key := "site_parameters:" + siteID

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var params map[string]string
		if jsonErr := json.Unmarshal([]byte(raw), &params); jsonErr == nil {
			return params, nil
		}
	}

	params, err := c.repo.LoadSiteParameters(ctx, siteID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(params); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.ttl); err != nil {
			c.log.Warn("failed to cache site parameters", zap.String("site_id", siteID), zap.Error(err))
		}
	}

	return params, nil
}
