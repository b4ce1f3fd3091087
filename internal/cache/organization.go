package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"textflow/internal/db"
	"textflow/internal/metrics"
	"textflow/internal/models"
)

// LoadOrganization returns the organization aggregate, serving from the
// shared cache when possible. A durable-store miss returns
// db.ErrOrgNotFound; a shared-cache failure falls back to a direct durable
// read.
func (c *Cache) LoadOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, c.orgKey(id)).Bytes()
		switch {
		case err == nil:
			var org models.Organization
			if jsonErr := json.Unmarshal(data, &org); jsonErr == nil {
				metrics.CacheRequests.WithLabelValues("organization", "hit").Inc()
				return &org, nil
			}
			// A snapshot that fails to parse is treated as a miss and
			// overwritten below.
			c.log.Warn("discarding malformed organization snapshot",
				zap.String("organization_id", id.String()))
		case err != redis.Nil:
			metrics.CacheRequests.WithLabelValues("organization", "error").Inc()
			c.log.Error("organization cache read failed, falling back to durable store",
				zap.String("organization_id", id.String()), zap.Error(err))
		default:
			metrics.CacheRequests.WithLabelValues("organization", "miss").Inc()
		}
	}

	org, err := c.store.GetOrganizationByID(ctx, id)
	if err != nil {
		if !errors.Is(err, db.ErrOrgNotFound) {
			c.log.Error("organization durable read failed",
				zap.String("organization_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	if c.redis != nil {
		data, err := json.Marshal(org)
		if err == nil {
			err = c.redis.Set(ctx, c.orgKey(id), data, c.cfg.SnapshotTTL).Err()
		}
		if err != nil {
			c.log.Error("organization cache write failed",
				zap.String("organization_id", id.String()), zap.Error(err))
		}
	}

	return org, nil
}

// ClearOrganization deletes the organization's cached snapshot. Idempotent.
func (c *Cache) ClearOrganization(ctx context.Context, id uuid.UUID) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, c.orgKey(id)).Err()
}

// ClearAndReloadOrganization clears the organization snapshot and all
// cached extension results for the org, then warms the snapshot with a
// fresh load. Partial failures are logged; the operation itself reports the
// first error only when the organization could not be reloaded at all.
func (c *Cache) ClearAndReloadOrganization(ctx context.Context, id uuid.UUID) error {
	if err := c.ClearOrganization(ctx, id); err != nil {
		c.log.Error("failed to clear organization cache",
			zap.String("organization_id", id.String()), zap.Error(err))
	}
	if err := c.ClearExtensionCaches(ctx, id); err != nil {
		c.log.Error("failed to clear extension caches",
			zap.String("organization_id", id.String()), zap.Error(err))
	}
	_, err := c.LoadOrganization(ctx, id)
	return err
}
