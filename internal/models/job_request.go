package models

import (
	"time"

	"github.com/google/uuid"
)

// Job request lifecycle statuses.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// JobRequest is a durable unit of background work. The row is written before
// the job is dispatched; whichever backend picks it up executes it once and
// records the outcome on the row.
type JobRequest struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	CampaignID     *uuid.UUID `json:"campaign_id,omitempty"`
	JobType        string     `json:"job_type"`
	Payload        []byte     `json:"payload"`
	Status         string     `json:"status"`
	ResultMessage  string     `json:"result_message"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
