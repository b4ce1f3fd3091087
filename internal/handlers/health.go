package handlers

import (
	"github.com/gofiber/fiber/v3"

	"textflow/internal/db"
)

// HealthHandler reports process and durable-store health.
type HealthHandler struct {
	db *db.DB
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(database *db.DB) *HealthHandler {
	return &HealthHandler{db: database}
}

// Check pings the durable store.
func (h *HealthHandler) Check(c fiber.Ctx) error {
	if err := h.db.Pool.Ping(c.Context()); err != nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "database unreachable")
	}
	return jsonSuccess(c, fiber.Map{"healthy": true})
}
