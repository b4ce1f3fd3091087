package cache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentEditors registers the calling user's presence on a campaign and
// returns the display names of everyone else still editing it. Presence is
// pure best-effort signaling: it lives only in the shared cache, each entry
// silently disappearing once the presence window passes without a refresh.
// There is no explicit "leave".
func (c *Cache) CurrentEditors(ctx context.Context, campaignID uuid.UUID, userID uuid.UUID, displayName string) ([]string, error) {
	if c.redis == nil {
		return nil, nil
	}

	// The user id prefix disambiguates editors who share a display name.
	field := userID.String() + "~" + displayName
	key := c.editorsKey(campaignID)
	now := time.Now()

	if err := c.redis.HSet(ctx, key, field, now.Format(time.RFC3339Nano)).Err(); err != nil {
		return nil, err
	}
	if err := c.redis.Expire(ctx, key, c.cfg.PresenceWindow).Err(); err != nil {
		return nil, err
	}

	entries, err := c.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var editors []string
	for entryField, lastSeen := range entries {
		if entryField == field {
			continue
		}
		seen, err := time.Parse(time.RFC3339Nano, lastSeen)
		if err != nil || now.Sub(seen) > c.cfg.PresenceWindow {
			continue
		}
		if _, name, ok := strings.Cut(entryField, "~"); ok {
			editors = append(editors, name)
		}
	}
	return editors, nil
}
