package groups

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	typPanel "github.com/anekolabs/whatsapp-admin-api/internal/types"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
	"github.com/anekolabs/whatsapp-admin-api/pkg/store"
	"github.com/anekolabs/whatsapp-admin-api/pkg/validation"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

// Handler serves the broadcast-group endpoints: stored groups in the panel's
// own database plus real group operations on the chat network.
type Handler struct {
	Manager *whatsapp.Manager
	Store   *store.Store
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func normalizeMembers(members []string) ([]string, error) {
	normalized := make([]string, 0, len(members))
	for _, member := range members {
		phone, err := validation.NormalizePhone(member)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, phone)
	}
	return normalized, nil
}

// Create stores a broadcast group.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req typPanel.RequestCreateGroup
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if strings.TrimSpace(req.Name) == "" {
		return router.ResponseBadRequest(c, "name is required")
	}

	members, err := normalizeMembers(req.Members)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	group, err := h.Store.CreateGroup(requestContext(c), strings.TrimSpace(req.Name), req.NetworkJID, members)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseCreatedWithData(c, "Group created", group)
}

// List returns every stored group.
func (h *Handler) List(c *fiber.Ctx) error {
	groups, err := h.Store.ListGroups(requestContext(c))
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccessWithData(c, "Success get groups", groups)
}

// Get returns one stored group with its members.
func (h *Handler) Get(c *fiber.Ctx) error {
	group, err := h.Store.GetGroup(requestContext(c), c.Params("group_id"))
	if err != nil {
		return router.ResponseNotFound(c, "Group not found")
	}
	return router.ResponseSuccessWithData(c, "Success get group", group)
}

// SetMembers replaces a stored group's member list.
func (h *Handler) SetMembers(c *fiber.Ctx) error {
	var req typPanel.RequestGroupMembers
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	members, err := normalizeMembers(req.Members)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	if err := h.Store.SetGroupMembers(requestContext(c), c.Params("group_id"), members); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Group members updated")
}

// Delete removes a stored group.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.Store.DeleteGroup(requestContext(c), c.Params("group_id")); err != nil {
		if err == store.ErrNotFound {
			return router.ResponseNotFound(c, "Group not found")
		}
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseNoContent(c)
}

// CreateNetworkGroup creates a real group on the chat network through a
// session, stores it, and binds the stored group to the network identity.
func (h *Handler) CreateNetworkGroup(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req typPanel.RequestNetworkGroup
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if strings.TrimSpace(req.Name) == "" {
		return router.ResponseBadRequest(c, "name is required")
	}

	members, err := normalizeMembers(req.Members)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	client, ok := h.Manager.Registry().Get(sessionID)
	if !ok {
		return router.ResponseNotFound(c, "Session not found")
	}

	ctx := requestContext(c)
	networkJID, err := client.CreateGroup(ctx, strings.TrimSpace(req.Name), members)
	if err != nil {
		log.SessionOp(sessionID, "CreateNetworkGroup").WithError(err).Error("Failed to create group")
		return router.ResponseInternalError(c, err.Error())
	}

	group, err := h.Store.CreateGroup(ctx, strings.TrimSpace(req.Name), networkJID, members)
	if err != nil {
		// The network group exists; surface the id even though the local
		// record failed.
		log.SessionOp(sessionID, "CreateNetworkGroup").WithError(err).Warn("Group created on network but not stored")
		return router.ResponseCreatedWithData(c, "Group created", map[string]interface{}{"network_jid": networkJID})
	}
	return router.ResponseCreatedWithData(c, "Group created", group)
}

// Chats lists the conversations a session participates in on the network.
func (h *Handler) Chats(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	client, ok := h.Manager.Registry().Get(sessionID)
	if !ok {
		return router.ResponseNotFound(c, "Session not found")
	}

	chats, err := client.GetChats(requestContext(c))
	if err != nil {
		log.SessionOp(sessionID, "GetChats").WithError(err).Error("Failed to list chats")
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccessWithData(c, "Success get chats", chats)
}
