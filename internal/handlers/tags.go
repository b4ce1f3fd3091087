package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/cache"
	"textflow/internal/db"
	"textflow/internal/dispatch"
	"textflow/internal/extensions"
	"textflow/internal/tasks"
)

// TagHandler persists contact tag updates and fans them out to the enabled
// tag-update action handlers through the dispatcher.
type TagHandler struct {
	db         *db.DB
	cache      *cache.Cache
	registry   *extensions.Registry
	dispatcher dispatch.Dispatcher
	log        *zap.Logger
}

// NewTagHandler creates a tag handler.
func NewTagHandler(database *db.DB, c *cache.Cache, registry *extensions.Registry, d dispatch.Dispatcher, log *zap.Logger) *TagHandler {
	return &TagHandler{db: database, cache: c, registry: registry, dispatcher: d, log: log}
}

type tagUpdateRequest struct {
	Tags       map[string]string `json:"tags"`
	TexterName string            `json:"texter_name"`
}

// Update saves the contact's tags, then dispatches one task per enabled
// tag-update handler. Handler dispatch is best-effort: a dispatch failure
// is logged and the mutation still succeeds.
func (h *TagHandler) Update(c fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}
	contactID, err := strconv.ParseInt(c.Params("contactID"), 10, 64)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid contact id")
	}

	var req tagUpdateRequest
	if err := c.Bind().Body(&req); err != nil || len(req.Tags) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "tags are required")
	}

	contact, err := h.db.GetCampaignContact(c.Context(), contactID)
	if err != nil {
		if errors.Is(err, db.ErrContactNotFound) {
			return jsonError(c, fiber.StatusNotFound, "contact not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to load contact")
	}
	if contact.CampaignID != campaignID {
		return jsonError(c, fiber.StatusNotFound, "contact not in campaign")
	}

	if err := h.db.SaveContactTags(c.Context(), contactID, req.Tags); err != nil {
		h.log.Error("failed to save contact tags",
			zap.Int64("contact_id", contactID), zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to save tags")
	}

	org, err := h.cache.LoadCampaignOrganization(c.Context(), campaignID)
	if err != nil {
		h.log.Error("failed to load organization for tag dispatch",
			zap.String("campaign_id", campaignID.String()), zap.Error(err))
		return jsonSuccess(c, fiber.Map{"id": contactID, "tags": req.Tags})
	}

	for _, plugin := range h.registry.TagUpdateHandlers(org) {
		payload, err := json.Marshal(tasks.TagUpdatePayload{
			HandlerName: plugin.Metadata().Name,
			ContactID:   contactID,
			Tags:        req.Tags,
			CampaignID:  campaignID,
			TexterName:  req.TexterName,
		})
		if err != nil {
			continue
		}
		if err := h.dispatcher.DispatchTask(c.Context(), tasks.TaskTagUpdate, payload); err != nil {
			h.log.Error("dispatching to tag handler failed",
				zap.String("handler", plugin.Metadata().Name), zap.Error(err))
		}
	}

	return jsonSuccess(c, fiber.Map{"id": contactID, "tags": req.Tags})
}
