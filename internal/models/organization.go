package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant root. Campaigns, contacts and per-deployment
// configuration all hang off an organization.
type Organization struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Features             string    `json:"features"`
	TextingHoursStart    int       `json:"texting_hours_start"`
	TextingHoursEnd      int       `json:"texting_hours_end"`
	TextingHoursEnforced bool      `json:"texting_hours_enforced"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// FeatureMap parses the serialized features column. A missing or malformed
// column yields an empty map; feature lookups are always optional.
func (o *Organization) FeatureMap() map[string]string {
	out := map[string]string{}
	if o == nil || o.Features == "" {
		return out
	}
	if err := json.Unmarshal([]byte(o.Features), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// Feature returns the named feature value, or "" when unset.
func (o *Organization) Feature(key string) string {
	return o.FeatureMap()[key]
}
