package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	sessions SessionLister
	store    Pinger
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":      "healthy",
		"activeCalls": h.sessions.Len(),
		"timestamp":   time.Now().Format(time.RFC3339),
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["summaryStore"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
		body["summaryStore"] = "ok"
	}
	return c.JSON(body)
}
