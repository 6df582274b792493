package admin

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/anekolabs/whatsapp-admin-api/pkg/realtime"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

// Handler serves the admin dashboard endpoints.
type Handler struct {
	Manager *whatsapp.Manager
	Hub     *realtime.Hub
}

// GetHealth runs a health check across every registered session and returns
// the per-session classifications.
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	monitor := h.Manager.Health()
	ids := h.Manager.Registry().ListIDs()
	statuses := make([]whatsapp.HealthStatus, 0, len(ids))
	healthy := 0
	for _, sessionID := range ids {
		status := monitor.Check(ctx, sessionID)
		if status.Healthy {
			healthy++
		}
		statuses = append(statuses, status)
	}

	return router.ResponseSuccessWithData(c, "Success get health", map[string]interface{}{
		"total":    len(ids),
		"healthy":  healthy,
		"sessions": statuses,
	})
}

// GetStats returns system-wide counters for the dashboard.
func (h *Handler) GetStats(c *fiber.Ctx) error {
	byStatus := make(map[string]int)
	for _, session := range h.Manager.Sessions() {
		byStatus[string(session.Status)]++
	}

	return router.ResponseSuccessWithData(c, "Success get stats", map[string]interface{}{
		"registered_clients": h.Manager.Registry().Len(),
		"sessions_by_status": byStatus,
		"tracked_health":     len(h.Manager.Health().Records()),
		"dashboard_clients":  h.Hub.ClientCount(),
	})
}
