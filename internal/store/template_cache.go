package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
)

const (
	TemplateCachePrefix     = "template:category:"
	DefaultTemplateCacheTTL = 5 * time.Minute
)

// CachedTemplateStore is a read-through Redis cache in front of a
// TemplateStorer. Redis failures never fail a fetch; they only cost a trip to
// the underlying store. Missing templates are not cached.
type CachedTemplateStore struct {
	next   TemplateStorer
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedTemplateStore(next TemplateStorer, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedTemplateStore {
	if ttl <= 0 {
		ttl = DefaultTemplateCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTemplateStore{next: next, redis: client, ttl: ttl, logger: logger}
}

func templateCacheKey(categoryID int64) string {
	return fmt.Sprintf("%s%d", TemplateCachePrefix, categoryID)
}

func (c *CachedTemplateStore) GetTemplate(ctx context.Context, categoryID int64) (*domain.ResolvedTemplate, error) {
	key := templateCacheKey(categoryID)

	cached, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var resolved domain.ResolvedTemplate
		if err := json.Unmarshal(cached, &resolved); err == nil {
			c.logger.Debug("template cache hit", zap.Int64("category_id", categoryID))
			return &resolved, nil
		}
		c.logger.Warn("discarding undecodable cached template", zap.String("key", key))
	case errors.Is(err, redis.Nil):
		c.logger.Debug("template cache miss", zap.Int64("category_id", categoryID))
	default:
		c.logger.Warn("template cache read failed", zap.String("key", key), zap.Error(err))
	}

	resolved, err := c.next.GetTemplate(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(resolved); err == nil {
		if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("template cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resolved, nil
}
