package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/cache"
	"textflow/internal/db"
)

// OrganizationHandler serves organization aggregate reads and the admin
// cache-clear operation.
type OrganizationHandler struct {
	cache *cache.Cache
	log   *zap.Logger
}

// NewOrganizationHandler creates an organization handler.
func NewOrganizationHandler(c *cache.Cache, log *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{cache: c, log: log}
}

// Get returns the organization aggregate, served from cache when possible.
func (h *OrganizationHandler) Get(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid organization id")
	}

	org, err := h.cache.LoadOrganization(c.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrOrgNotFound) {
			return jsonError(c, fiber.StatusNotFound, "organization not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to load organization")
	}

	return jsonSuccess(c, org)
}

// ClearCache drops the organization's cached snapshot and extension result
// caches, then warms the snapshot again.
func (h *OrganizationHandler) ClearCache(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid organization id")
	}

	if !h.cache.Enabled() {
		return jsonSuccess(c, "no shared cache configured, nothing to clear")
	}

	if err := h.cache.ClearAndReloadOrganization(c.Context(), id); err != nil {
		if errors.Is(err, db.ErrOrgNotFound) {
			return jsonError(c, fiber.StatusNotFound, "organization not found")
		}
		h.log.Error("failed to clear organization caches",
			zap.String("organization_id", id.String()), zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to clear caches")
	}

	return jsonSuccess(c, "cleared organization and extension caches")
}
