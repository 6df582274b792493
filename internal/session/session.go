package session

import (
	"context"

	"github.com/gofiber/fiber/v2"

	typPanel "github.com/anekolabs/whatsapp-admin-api/internal/types"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
	"github.com/anekolabs/whatsapp-admin-api/pkg/validation"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

// Handler serves the session lifecycle endpoints.
type Handler struct {
	Manager *whatsapp.Manager
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// Create starts a new session. When no durable credentials exist the QR
// pairing flow begins; the code reaches the dashboard over the websocket and
// through polling GET /sessions/:id.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req typPanel.RequestCreateSession
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if err := validation.ValidateSessionID(req.SessionID); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	log.SessionOp(req.SessionID, "Create").Info("Creating session")
	session, err := h.Manager.Create(requestContext(c), req.SessionID)
	if err != nil {
		return router.ResponseFromError(c, err)
	}
	return router.ResponseCreatedWithData(c, "Session created", session)
}

// List returns every tracked session.
func (h *Handler) List(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "Success get sessions", h.Manager.Sessions())
}

// Get returns one session, QR code included while pairing.
func (h *Handler) Get(c *fiber.Ctx) error {
	session, ok := h.Manager.Session(c.Params("id"))
	if !ok {
		return router.ResponseNotFound(c, "Session not found")
	}
	return router.ResponseSuccessWithData(c, "Success get session", session)
}

// Health runs an on-demand health check for one session.
func (h *Handler) Health(c *fiber.Ctx) error {
	status := h.Manager.Health().Check(requestContext(c), c.Params("id"))
	return router.ResponseSuccessWithData(c, "Success check session health", status)
}

// Recover forces the recovery procedure for one session.
func (h *Handler) Recover(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if _, ok := h.Manager.Session(sessionID); !ok {
		return router.ResponseNotFound(c, "Session not found")
	}

	if err := h.Manager.Recover(requestContext(c), sessionID); err != nil {
		return router.ResponseFromError(c, err)
	}
	session, _ := h.Manager.Session(sessionID)
	return router.ResponseSuccessWithData(c, "Session recovered", session)
}

// Logout tears the session down and invalidates its durable credentials.
func (h *Handler) Logout(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	log.SessionOp(sessionID, "Logout").Info("Logging out session")

	if err := h.Manager.Logout(requestContext(c), sessionID); err != nil {
		return router.ResponseFromError(c, err)
	}
	return router.ResponseSuccess(c, "Session logged out")
}
