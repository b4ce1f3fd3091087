// Package cache implements the cache-aside layer over the durable store for
// the Organization and Campaign aggregates, plus the campaign counters
// record and editor presence. The shared cache is always disposable: every
// path tolerates it being absent or stale up to its TTL, and the durable
// store remains the only arbiter of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"textflow/internal/config"
	"textflow/internal/models"
)

// Store is the durable-store boundary the cache reads through. Implemented
// by *db.DB; tests substitute fakes.
type Store interface {
	GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetOrganizationForCampaign(ctx context.Context, campaignID uuid.UUID) (*models.Organization, error)
	GetCampaignByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetCampaignCustomFields(ctx context.Context, campaignID uuid.UUID) ([]string, error)
	GetCampaignInteractionSteps(ctx context.Context, campaignID uuid.UUID) ([]*models.InteractionStep, error)
	GetCampaignContactTimezones(ctx context.Context, campaignID uuid.UUID) ([]string, error)
	GetCampaignContactsCount(ctx context.Context, campaignID uuid.UUID) (int64, error)
	GetCampaignAssignedCount(ctx context.Context, campaignID uuid.UUID) (int64, error)
}

// Cache is the aggregate cache. A nil redis client is a supported
// configuration: every operation degrades to a direct durable read or a
// no-op.
type Cache struct {
	store Store
	redis *redis.Client
	cfg   *config.Config
	log   *zap.Logger
}

// New creates an aggregate cache. rdb may be nil when no shared cache is
// configured.
func New(store Store, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *Cache {
	return &Cache{store: store, redis: rdb, cfg: cfg, log: log}
}

// NewRedisClient builds a go-redis client from a REDIS_URL style address.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Enabled reports whether a shared cache is configured.
func (c *Cache) Enabled() bool {
	return c.redis != nil
}

func (c *Cache) campaignKey(id uuid.UUID) string {
	return c.cfg.CacheKeyPrefix + "campaign-" + id.String()
}

func (c *Cache) campaignInfoKey(id uuid.UUID) string {
	return c.cfg.CacheKeyPrefix + "campaigninfo-" + id.String()
}

func (c *Cache) orgKey(id uuid.UUID) string {
	return c.cfg.CacheKeyPrefix + "org-" + id.String()
}

func (c *Cache) editorsKey(id uuid.UUID) string {
	return c.cfg.CacheKeyPrefix + "campaign-editors-" + id.String()
}

func (c *Cache) extResultKey(parts ...string) string {
	key := c.cfg.CacheKeyPrefix + "extcache"
	for _, p := range parts {
		key += "-" + p
	}
	return key
}

// GetExtensionResult reads a previously cached extension result (plugin
// availability, client choice data) into dest. Returns false on a miss or
// when no shared cache is configured.
func (c *Cache) GetExtensionResult(ctx context.Context, dest any, keyParts ...string) (bool, error) {
	if c.redis == nil {
		return false, nil
	}
	data, err := c.redis.Get(ctx, c.extResultKey(keyParts...)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetExtensionResult caches an extension result honoring the TTL the plugin
// asked for. No-op when no shared cache is configured or the plugin asked
// for no caching.
func (c *Cache) SetExtensionResult(ctx context.Context, val any, ttl time.Duration, keyParts ...string) error {
	if c.redis == nil || ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.extResultKey(keyParts...), data, ttl).Err()
}

// ClearExtensionCaches deletes all cached extension results for an
// organization. Used by the admin clear-and-reload operation.
func (c *Cache) ClearExtensionCaches(ctx context.Context, orgID uuid.UUID) error {
	if c.redis == nil {
		return nil
	}
	pattern := c.cfg.CacheKeyPrefix + "extcache-*" + orgID.String() + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
