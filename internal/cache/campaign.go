package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"textflow/internal/db"
	"textflow/internal/metrics"
	"textflow/internal/models"
)

// LoadOptions control a campaign load.
type LoadOptions struct {
	// ForceLoad bypasses any cached snapshot and performs a deep reload.
	ForceLoad bool
}

// LoadCampaign returns the deep campaign aggregate. The cached snapshot is
// used when present and complete; otherwise the aggregate is recomputed
// from the durable store and, when cache-eligible, written back with the
// snapshot TTL. Counters are always merged in from the live counters
// record, never from the snapshot. A durable-store miss returns
// db.ErrCampaignNotFound.
func (c *Cache) LoadCampaign(ctx context.Context, id uuid.UUID, opts LoadOptions) (*models.CampaignAggregate, error) {
	if c.redis != nil && !opts.ForceLoad {
		agg, err := c.readSnapshot(ctx, id)
		if err != nil {
			metrics.CacheRequests.WithLabelValues("campaign", "error").Inc()
			c.log.Error("campaign cache read failed, falling back to durable store",
				zap.String("campaign_id", id.String()), zap.Error(err))
		} else if agg.Complete() {
			metrics.CacheRequests.WithLabelValues("campaign", "hit").Inc()
			c.mergeCounters(ctx, id, agg)
			return agg, nil
		} else {
			metrics.CacheRequests.WithLabelValues("campaign", "miss").Inc()
		}
	}

	agg, err := c.deepLoadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.redis == nil || !agg.CacheEligible() {
		if agg.IsArchived {
			metrics.CacheRequests.WithLabelValues("campaign", "bypass").Inc()
		}
		return agg, nil
	}

	if err := c.writeSnapshot(ctx, agg); err != nil {
		// The freshly computed aggregate is still good; the cache is
		// disposable.
		c.log.Error("campaign cache write failed",
			zap.String("campaign_id", id.String()), zap.Error(err))
		return agg, nil
	}

	// Re-read so callers get exactly what every other process will see
	// until the next invalidation.
	cached, err := c.readSnapshot(ctx, id)
	if err != nil || !cached.Complete() {
		if err != nil {
			c.log.Error("campaign cache re-read failed",
				zap.String("campaign_id", id.String()), zap.Error(err))
		}
		return agg, nil
	}
	c.mergeCounters(ctx, id, cached)
	return cached, nil
}

// ReloadCampaign forces a deep reload, refreshing the snapshot for
// cache-eligible campaigns.
func (c *Cache) ReloadCampaign(ctx context.Context, id uuid.UUID) (*models.CampaignAggregate, error) {
	return c.LoadCampaign(ctx, id, LoadOptions{ForceLoad: true})
}

// ClearCampaign deletes the campaign's cached snapshot. Idempotent. The
// counters record is left alone: progress numbers outlive snapshot
// invalidation.
func (c *Cache) ClearCampaign(ctx context.Context, id uuid.UUID) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, c.campaignKey(id)).Err()
}

// readSnapshot fetches and decodes the cached aggregate. A missing key
// yields (nil, nil); a malformed snapshot is treated the same way so it
// gets rebuilt.
func (c *Cache) readSnapshot(ctx context.Context, id uuid.UUID) (*models.CampaignAggregate, error) {
	data, err := c.redis.Get(ctx, c.campaignKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var agg models.CampaignAggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		c.log.Warn("discarding malformed campaign snapshot",
			zap.String("campaign_id", id.String()))
		return nil, nil
	}
	return &agg, nil
}

// deepLoadCampaign recomputes the aggregate from its five independent
// durable queries and combines them into one snapshot object.
func (c *Cache) deepLoadCampaign(ctx context.Context, id uuid.UUID) (*models.CampaignAggregate, error) {
	campaign, err := c.store.GetCampaignByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrCampaignNotFound) {
			c.log.Error("no campaign found", zap.String("campaign_id", id.String()))
			return nil, err
		}
		return nil, err
	}

	agg := &models.CampaignAggregate{Campaign: *campaign}

	if agg.CustomFields, err = c.store.GetCampaignCustomFields(ctx, id); err != nil {
		return nil, err
	}
	if agg.InteractionSteps, err = c.store.GetCampaignInteractionSteps(ctx, id); err != nil {
		return nil, err
	}
	if agg.InteractionSteps == nil {
		// Snapshots distinguish "no steps" from "steps never loaded", so the
		// list must serialize as [] rather than null.
		agg.InteractionSteps = []*models.InteractionStep{}
	}
	if agg.ContactTimezones, err = c.store.GetCampaignContactTimezones(ctx, id); err != nil {
		return nil, err
	}
	if agg.ContactsCount, err = c.store.GetCampaignContactsCount(ctx, id); err != nil {
		return nil, err
	}

	return agg, nil
}

// writeSnapshot stores the aggregate snapshot and the contacts count in one
// atomic batch. The snapshot expires on the shorter TTL; the counters
// record keeps its longer retention so progress review survives snapshot
// expiry.
func (c *Cache) writeSnapshot(ctx context.Context, agg *models.CampaignAggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return err
	}

	infoKey := c.campaignInfoKey(agg.ID)
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, c.campaignKey(agg.ID), data, c.cfg.SnapshotTTL)
	pipe.HSet(ctx, infoKey, "contactsCount", agg.ContactsCount)
	pipe.Expire(ctx, infoKey, c.cfg.CountersTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// mergeCounters overlays the live counters record onto a snapshot copy.
// Counter read failures leave zero values; counters are an observability
// aid and must never fail a load.
func (c *Cache) mergeCounters(ctx context.Context, id uuid.UUID, agg *models.CampaignAggregate) {
	fields := []string{
		models.CounterAssigned,
		models.CounterMessaged,
		models.CounterNeedsResponse,
		models.CounterError,
	}
	vals, err := c.redis.HMGet(ctx, c.campaignInfoKey(id), fields...).Result()
	if err != nil {
		c.log.Error("campaign counters read failed",
			zap.String("campaign_id", id.String()), zap.Error(err))
		return
	}

	counters := &agg.Counters
	targets := []*int64{
		&counters.AssignedCount,
		&counters.MessagedCount,
		&counters.NeedsResponseCount,
		&counters.ErrorCount,
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*targets[i] = n
		}
	}
}

// IncrementCounter atomically bumps the named counter and refreshes the
// counters record's retention window. Callers on primary request paths
// deliberately log-and-drop the returned error: counters never fail the
// operation that produced them.
func (c *Cache) IncrementCounter(ctx context.Context, id uuid.UUID, counterName string, delta int64) error {
	switch counterName {
	case models.CounterAssigned, models.CounterMessaged, models.CounterNeedsResponse, models.CounterError:
	default:
		return errors.New("unknown counter " + counterName)
	}
	if c.redis == nil {
		return nil
	}

	infoKey := c.campaignInfoKey(id)
	pipe := c.redis.TxPipeline()
	pipe.HIncrBy(ctx, infoKey, counterName, delta)
	pipe.Expire(ctx, infoKey, c.cfg.CountersTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RecomputeAssignedCount recounts assigned contacts from the durable store
// and overwrites the counter, correcting any drift accumulated by
// incremental updates.
func (c *Cache) RecomputeAssignedCount(ctx context.Context, id uuid.UUID) (int64, error) {
	count, err := c.store.GetCampaignAssignedCount(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.redis == nil {
		return count, nil
	}

	infoKey := c.campaignInfoKey(id)
	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, infoKey, models.CounterAssigned, count)
	pipe.Expire(ctx, infoKey, c.cfg.CountersTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error("failed to store recomputed assigned count",
			zap.String("campaign_id", id.String()), zap.Error(err))
	}
	return count, nil
}

// CompletionStats returns the raw counters record for progress dashboards.
// Returns zero values when no shared cache is configured or the record has
// expired.
func (c *Cache) CompletionStats(ctx context.Context, id uuid.UUID) (models.CampaignCounters, int64, error) {
	var counters models.CampaignCounters
	if c.redis == nil {
		return counters, 0, nil
	}

	vals, err := c.redis.HGetAll(ctx, c.campaignInfoKey(id)).Result()
	if err != nil {
		return counters, 0, err
	}

	parse := func(field string) int64 {
		n, _ := strconv.ParseInt(vals[field], 10, 64)
		return n
	}
	counters.AssignedCount = parse(models.CounterAssigned)
	counters.MessagedCount = parse(models.CounterMessaged)
	counters.NeedsResponseCount = parse(models.CounterNeedsResponse)
	counters.ErrorCount = parse(models.CounterError)
	return counters, parse("contactsCount"), nil
}

// LoadCampaignOrganization resolves the organization a campaign belongs to,
// going through both aggregate caches when a shared cache is configured and
// a single joined durable query otherwise.
func (c *Cache) LoadCampaignOrganization(ctx context.Context, campaignID uuid.UUID) (*models.Organization, error) {
	if c.redis == nil {
		return c.store.GetOrganizationForCampaign(ctx, campaignID)
	}
	campaign, err := c.LoadCampaign(ctx, campaignID, LoadOptions{})
	if err != nil {
		return nil, err
	}
	return c.LoadOrganization(ctx, campaign.OrganizationID)
}
