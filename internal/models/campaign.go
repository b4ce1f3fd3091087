package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Campaign is the durable campaign row. It belongs to exactly one
// organization.
type Campaign struct {
	ID                   uuid.UUID `json:"id"`
	OrganizationID       uuid.UUID `json:"organization_id"`
	Title                string    `json:"title"`
	IsArchived           bool      `json:"is_archived"`
	IsStarted            bool      `json:"is_started"`
	UseDynamicAssignment bool      `json:"use_dynamic_assignment"`
	BatchSize            int       `json:"batch_size"`
	Features             string    `json:"features"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// FeatureMap parses the campaign's serialized features column, same contract
// as Organization.FeatureMap.
func (c *Campaign) FeatureMap() map[string]string {
	out := map[string]string{}
	if c == nil || c.Features == "" {
		return out
	}
	if err := json.Unmarshal([]byte(c.Features), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// Feature returns the named campaign-scoped feature value, or "" when unset.
func (c *Campaign) Feature(key string) string {
	return c.FeatureMap()[key]
}

// CampaignCounters tracks per-campaign progress. Stored apart from the deep
// aggregate with a longer retention window so progress review survives
// aggregate expiry.
type CampaignCounters struct {
	AssignedCount      int64 `json:"assigned_count"`
	MessagedCount      int64 `json:"messaged_count"`
	NeedsResponseCount int64 `json:"needs_response_count"`
	ErrorCount         int64 `json:"error_count"`
}

// Counter field names as stored in the counters hash.
const (
	CounterAssigned      = "assignedCount"
	CounterMessaged      = "messagedCount"
	CounterNeedsResponse = "needsResponseCount"
	CounterError         = "errorCount"
)

// CampaignAggregate is the deep, denormalized campaign view assembled from
// five independent queries. This is the shape cached as a JSON snapshot;
// Counters are merged in from the live counters record at read time, never
// from the snapshot.
type CampaignAggregate struct {
	Campaign
	InteractionSteps []*InteractionStep `json:"interaction_steps"`
	CustomFields     []string           `json:"custom_fields"`
	ContactTimezones []string           `json:"contact_timezones"`
	ContactsCount    int64              `json:"contacts_count"`
	Counters         CampaignCounters   `json:"counters"`
}

// CacheEligible reports whether the aggregate may be written to the shared
// cache. Archived campaigns are immutable and always served from the durable
// store.
func (a *CampaignAggregate) CacheEligible() bool {
	return a != nil && !a.IsArchived
}

// Complete reports whether a cached snapshot contains the composite fields a
// deep load produces. Deep loads always materialize the step list, so a
// snapshot where it decodes to nil is a leftover partial or placeholder
// write and must be rebuilt. A campaign with no steps yet still counts as
// complete.
func (a *CampaignAggregate) Complete() bool {
	return a != nil && a.InteractionSteps != nil
}
