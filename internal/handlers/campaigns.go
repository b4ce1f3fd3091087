package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/cache"
	"textflow/internal/db"
	"textflow/internal/extensions"
)

// CampaignHandler serves campaign aggregate reads, completion stats,
// editor presence and dynamic-batch requests.
type CampaignHandler struct {
	cache    *cache.Cache
	registry *extensions.Registry
	log      *zap.Logger
}

// NewCampaignHandler creates a campaign handler.
func NewCampaignHandler(c *cache.Cache, registry *extensions.Registry, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{cache: c, registry: registry, log: log}
}

// Get returns the deep campaign aggregate with live counters merged in.
// ?force=1 bypasses the cached snapshot.
func (h *CampaignHandler) Get(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}

	opts := cache.LoadOptions{ForceLoad: c.Query("force") == "1"}
	campaign, err := h.cache.LoadCampaign(c.Context(), id, opts)
	if err != nil {
		if errors.Is(err, db.ErrCampaignNotFound) {
			return jsonError(c, fiber.StatusNotFound, "campaign not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to load campaign")
	}

	return jsonSuccess(c, campaign)
}

// Stats returns the counters record for progress dashboards. The record
// deliberately outlives the aggregate snapshot, so stats stay populated
// after the snapshot expires or the campaign is archived.
func (h *CampaignHandler) Stats(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}

	counters, contactsCount, err := h.cache.CompletionStats(c.Context(), id)
	if err != nil {
		h.log.Error("failed to read completion stats",
			zap.String("campaign_id", id.String()), zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to read stats")
	}

	return jsonSuccess(c, fiber.Map{
		"counters":       counters,
		"contacts_count": contactsCount,
	})
}

type editorsRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

// Editors registers the caller's editing presence and returns who else is
// editing the campaign right now. Best-effort: presence failures yield an
// empty list, never an error to the user.
func (h *CampaignHandler) Editors(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}

	var req editorsRequest
	if err := c.Bind().Body(&req); err != nil || req.UserID == uuid.Nil || req.DisplayName == "" {
		return jsonError(c, fiber.StatusBadRequest, "user_id and display_name are required")
	}

	editors, err := h.cache.CurrentEditors(c.Context(), id, req.UserID, req.DisplayName)
	if err != nil {
		h.log.Error("presence update failed",
			zap.String("campaign_id", id.String()), zap.Error(err))
		editors = nil
	}

	return jsonSuccess(c, fiber.Map{"editors": editors})
}

type batchRequest struct {
	Texter string `json:"texter"`
}

// RequestBatch evaluates the enabled dynamic-assignment batch policies in
// configured order; the first policy to grant a non-zero batch wins.
func (h *CampaignHandler) RequestBatch(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}

	var req batchRequest
	if err := c.Bind().Body(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	campaign, err := h.cache.LoadCampaign(c.Context(), id, cache.LoadOptions{})
	if err != nil {
		if errors.Is(err, db.ErrCampaignNotFound) {
			return jsonError(c, fiber.StatusNotFound, "campaign not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to load campaign")
	}
	if !campaign.UseDynamicAssignment {
		return jsonError(c, fiber.StatusConflict, "campaign does not use dynamic assignment")
	}

	org, err := h.cache.LoadOrganization(c.Context(), campaign.OrganizationID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to load organization")
	}

	request := extensions.BatchRequest{
		Texter:       req.Texter,
		Campaign:     campaign,
		Organization: org,
	}
	for _, plugin := range h.registry.BatchPolicies(org, &campaign.Campaign) {
		sizer, ok := plugin.(extensions.BatchSizer)
		if !ok {
			continue
		}
		size, err := sizer.DynamicBatchSize(c.Context(), request)
		if err != nil {
			h.log.Error("batch policy failed",
				zap.String("policy", plugin.Metadata().Name),
				zap.String("campaign_id", id.String()), zap.Error(err))
			continue
		}
		if size > 0 {
			return jsonSuccess(c, fiber.Map{
				"policy":     plugin.Metadata().Name,
				"batch_size": size,
			})
		}
	}

	return jsonSuccess(c, fiber.Map{"policy": "", "batch_size": 0})
}
