// Package tasks registers the task and job implementations the dispatch
// backends execute.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/cache"
	"textflow/internal/dispatch"
	"textflow/internal/extensions"
	"textflow/internal/models"
)

// Registered task names and job types.
const (
	TaskTagUpdate           = "action-handler-tag-update"
	TaskUpdateAssignedCount = "update-assigned-count"
	TaskClearCampaignCache  = "clear-campaign-cache"

	JobStartCampaign   = "start-campaign"
	JobArchiveCampaign = "archive-campaign"
)

// CampaignStore is the slice of the durable store the job implementations
// mutate.
type CampaignStore interface {
	SetCampaignArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SetCampaignStarted(ctx context.Context, id uuid.UUID, started bool) error
}

// Deps are the collaborators task and job implementations close over.
type Deps struct {
	Cache    *cache.Cache
	Registry *extensions.Registry
	Store    CampaignStore
	Log      *zap.Logger
}

// TagUpdatePayload carries one tag change to one handler. The dispatching
// mutation fans out one task per enabled handler so a slow or failing
// handler never delays the others.
type TagUpdatePayload struct {
	HandlerName string            `json:"handler_name"`
	ContactID   int64             `json:"contact_id"`
	Tags        map[string]string `json:"tags"`
	CampaignID  uuid.UUID         `json:"campaign_id"`
	TexterName  string            `json:"texter_name"`
}

// CampaignPayload identifies a campaign for single-campaign tasks.
type CampaignPayload struct {
	CampaignID uuid.UUID `json:"campaign_id"`
}

// RegisterAll registers every task and job implementation on the table.
func RegisterAll(table *dispatch.Table, deps Deps) {
	table.RegisterTask(TaskTagUpdate, tagUpdateTask(deps))
	table.RegisterTask(TaskUpdateAssignedCount, updateAssignedCountTask(deps))
	table.RegisterTask(TaskClearCampaignCache, clearCampaignCacheTask(deps))

	table.RegisterJob(JobStartCampaign, startCampaignJob(deps))
	table.RegisterJob(JobArchiveCampaign, archiveCampaignJob(deps))
}

// tagUpdateTask runs a single tag-update action handler. The handler is
// re-resolved by name at execution time so a handler disabled between
// dispatch and execution simply no-ops.
func tagUpdateTask(deps Deps) dispatch.TaskFunc {
	return func(ctx context.Context, payload []byte, budget dispatch.TimeBudget) error {
		var p TagUpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("malformed tag-update payload: %w", err)
		}

		campaign, err := deps.Cache.LoadCampaign(ctx, p.CampaignID, cache.LoadOptions{})
		if err != nil {
			return err
		}
		org, err := deps.Cache.LoadOrganization(ctx, campaign.OrganizationID)
		if err != nil {
			return err
		}

		plugin, ok := deps.Registry.Lookup(extensions.ActionHandlerKind, p.HandlerName)
		if !ok {
			return fmt.Errorf("tag-update handler %q is not registered", p.HandlerName)
		}
		handler, ok := plugin.(extensions.TagUpdateHandler)
		if !ok {
			deps.Log.Warn("handler does not process tag updates",
				zap.String("handler", p.HandlerName))
			return nil
		}

		// Stay inside the host's remaining-time budget.
		ctx, cancel := context.WithTimeout(ctx, budget())
		defer cancel()

		return handler.OnTagUpdate(ctx, extensions.TagUpdate{
			ContactID:    p.ContactID,
			Tags:         p.Tags,
			Campaign:     &campaign.Campaign,
			Organization: org,
			TexterName:   p.TexterName,
		})
	}
}

// updateAssignedCountTask recounts a campaign's assigned contacts from the
// durable store, correcting counter drift after bulk assignment changes.
func updateAssignedCountTask(deps Deps) dispatch.TaskFunc {
	return func(ctx context.Context, payload []byte, _ dispatch.TimeBudget) error {
		var p CampaignPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
		count, err := deps.Cache.RecomputeAssignedCount(ctx, p.CampaignID)
		if err != nil {
			return err
		}
		deps.Log.Info("recomputed assigned count",
			zap.String("campaign_id", p.CampaignID.String()), zap.Int64("count", count))
		return nil
	}
}

func clearCampaignCacheTask(deps Deps) dispatch.TaskFunc {
	return func(ctx context.Context, payload []byte, _ dispatch.TimeBudget) error {
		var p CampaignPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("malformed payload: %w", err)
		}
		return deps.Cache.ClearCampaign(ctx, p.CampaignID)
	}
}

// startCampaignJob marks the campaign started and warms its aggregate:
// deep reload plus an assigned-count recompute so dashboards are accurate
// from the first send.
func startCampaignJob(deps Deps) dispatch.JobFunc {
	return func(ctx context.Context, job *models.JobRequest) error {
		if job.CampaignID == nil {
			return fmt.Errorf("start-campaign job %s has no campaign", job.ID)
		}
		id := *job.CampaignID

		if err := deps.Store.SetCampaignStarted(ctx, id, true); err != nil {
			return err
		}
		if _, err := deps.Cache.ReloadCampaign(ctx, id); err != nil {
			return err
		}
		_, err := deps.Cache.RecomputeAssignedCount(ctx, id)
		return err
	}
}

// archiveCampaignJob archives the campaign and drops its snapshot; from
// then on loads come straight from the durable store. Counters are kept
// for post-campaign review.
func archiveCampaignJob(deps Deps) dispatch.JobFunc {
	return func(ctx context.Context, job *models.JobRequest) error {
		if job.CampaignID == nil {
			return fmt.Errorf("archive-campaign job %s has no campaign", job.ID)
		}
		id := *job.CampaignID

		if err := deps.Store.SetCampaignArchived(ctx, id, true); err != nil {
			return err
		}
		if err := deps.Cache.ClearCampaign(ctx, id); err != nil {
			deps.Log.Error("failed to clear archived campaign cache",
				zap.String("campaign_id", id.String()), zap.Error(err))
		}
		return nil
	}
}
