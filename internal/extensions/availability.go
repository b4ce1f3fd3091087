package extensions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"textflow/internal/cache"
	"textflow/internal/models"
)

// Available reports whether a plugin is usable for the organization. A
// plugin without an availability check is always available. Results are
// cached in the shared cache for exactly as long as the plugin's own
// expiry hint allows, independent of the aggregate cache's TTLs.
func (r *Registry) Available(ctx context.Context, c *cache.Cache, p Plugin, org *models.Organization) (bool, error) {
	checker, ok := p.(AvailabilityChecker)
	if !ok {
		return true, nil
	}

	name := p.Metadata().Name
	keyParts := []string{"avail", name, org.ID.String()}

	var cached AvailabilityResult
	hit, err := c.GetExtensionResult(ctx, &cached, keyParts...)
	if err != nil {
		r.log.Error("availability cache read failed",
			zap.String("extension", name), zap.Error(err))
	} else if hit {
		return cached.Result, nil
	}

	result, err := checker.Available(ctx, org)
	if err != nil {
		return false, err
	}

	if err := c.SetExtensionResult(ctx, result, time.Duration(result.ExpiresSeconds)*time.Second, keyParts...); err != nil {
		r.log.Error("availability cache write failed",
			zap.String("extension", name), zap.Error(err))
	}
	return result.Result, nil
}

// ChoiceData returns a plugin's client choice data, cached on the plugin's
// own expiry hint. Plugins without choice data return an empty result.
func (r *Registry) ChoiceData(ctx context.Context, c *cache.Cache, p Plugin, org *models.Organization) (ClientChoiceData, error) {
	provider, ok := p.(ClientChoiceDataProvider)
	if !ok {
		return ClientChoiceData{}, nil
	}

	name := p.Metadata().Name
	keyParts := []string{"choices", name, org.ID.String()}

	var cached ClientChoiceData
	hit, err := c.GetExtensionResult(ctx, &cached, keyParts...)
	if err != nil {
		r.log.Error("choice-data cache read failed",
			zap.String("extension", name), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	data, err := provider.GetClientChoiceData(ctx, org)
	if err != nil {
		return ClientChoiceData{}, err
	}

	if err := c.SetExtensionResult(ctx, data, time.Duration(data.ExpiresSeconds)*time.Second, keyParts...); err != nil {
		r.log.Error("choice-data cache write failed",
			zap.String("extension", name), zap.Error(err))
	}
	return data, nil
}
