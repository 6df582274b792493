package messaging

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	typPanel "github.com/anekolabs/whatsapp-admin-api/internal/types"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
	"github.com/anekolabs/whatsapp-admin-api/pkg/store"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

// Handler serves the message sending endpoints for one session.
type Handler struct {
	Manager *whatsapp.Manager
	Store   *store.Store
}

func convertFileToBytes(file multipart.File) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	_, err := io.Copy(buffer, file)
	if err != nil {
		return bytes.NewBuffer(nil).Bytes(), err
	}
	return buffer.Bytes(), nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// SendText sends one text message through a session.
func (h *Handler) SendText(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req typPanel.RequestSendMessage
	if err := c.BodyParser(&req); err != nil {
		log.SessionOp(sessionID, "SendText").Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	log.SessionOp(sessionID, "SendText").WithField("text_length", len(req.Message)).Info("Sending text message")

	messageID, err := h.Manager.SendText(requestContext(c), sessionID, req.Phone, req.Message)
	if err != nil {
		log.SessionOp(sessionID, "SendText").WithError(err).Error("Failed to send message")
		return router.ResponseFromError(c, err)
	}
	return router.ResponseSuccessWithData(c, "Success send message", map[string]interface{}{"message_id": messageID})
}

// SendBulk sends one message to many recipients, sequentially with a
// randomized pause between sends. Always 200: per-target outcomes are in the
// body, in input order.
func (h *Handler) SendBulk(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req typPanel.RequestSendBulk
	if err := c.BodyParser(&req); err != nil {
		log.SessionOp(sessionID, "SendBulk").Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if len(req.Phones) == 0 {
		return router.ResponseBadRequest(c, "phones is required")
	}

	log.SessionOp(sessionID, "SendBulk").WithField("targets", len(req.Phones)).Info("Sending bulk message")

	batch, err := h.Manager.SendBulk(requestContext(c), sessionID, req.Phones, req.Message)
	if err != nil {
		return router.ResponseFromError(c, err)
	}
	return router.ResponseSuccessWithData(c, "Bulk send finished", batch)
}

// SendGroup delivers a message to a stored group: directly when the group is
// bound to a network-level group, otherwise to each stored member.
func (h *Handler) SendGroup(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	groupID := c.Params("group_id")

	var req typPanel.RequestSendGroup
	if err := c.BodyParser(&req); err != nil {
		log.SessionOp(sessionID, "SendGroup").Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	ctx := requestContext(c)
	group, err := h.Store.GetGroup(ctx, groupID)
	if err != nil {
		return router.ResponseNotFound(c, "Group not found")
	}
	if group.NetworkJID == "" && len(group.Members) == 0 {
		return router.ResponseBadRequest(c, "group has no members")
	}

	log.SessionOp(sessionID, "SendGroup").WithField("group", group.Name).Info("Sending group message")

	batch, err := h.Manager.SendGroupMessage(ctx, sessionID, whatsapp.GroupTarget{
		NetworkJID: group.NetworkJID,
		Members:    group.Members,
	}, req.Message)
	if err != nil {
		return router.ResponseFromError(c, err)
	}
	return router.ResponseSuccessWithData(c, "Group send finished", batch)
}

// SendImage sends an image with an optional caption. Multipart form: file,
// phone, caption.
func (h *Handler) SendImage(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	phone := c.FormValue("phone")
	caption := c.FormValue("caption")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.SessionOp(sessionID, "SendImage").Warn("No file provided")
		return router.ResponseBadRequest(c, "file is required")
	}

	log.SessionOp(sessionID, "SendImage").WithField("filename", fileHeader.Filename).WithField("size", fileHeader.Size).Info("Sending image")

	file, err := fileHeader.Open()
	if err != nil {
		log.SessionOp(sessionID, "SendImage").WithError(err).Error("Failed to open file")
		return router.ResponseInternalError(c, err.Error())
	}
	defer file.Close()

	fileBytes, err := convertFileToBytes(file)
	if err != nil {
		log.SessionOp(sessionID, "SendImage").WithError(err).Error("Failed to convert file to bytes")
		return router.ResponseInternalError(c, err.Error())
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	messageID, err := h.Manager.SendImage(requestContext(c), sessionID, phone, fileBytes, mimeType, caption)
	if err != nil {
		log.SessionOp(sessionID, "SendImage").WithError(err).Error("Failed to send image")
		return router.ResponseFromError(c, err)
	}
	return router.ResponseSuccessWithData(c, "Success send image", map[string]interface{}{"message_id": messageID})
}

// SendDocument sends a file attachment. Multipart form: file, phone,
// filename (optional, defaults to the upload's name).
func (h *Handler) SendDocument(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	phone := c.FormValue("phone")
	fileName := c.FormValue("filename")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.SessionOp(sessionID, "SendDocument").Warn("No file provided")
		return router.ResponseBadRequest(c, "file is required")
	}
	if fileName == "" {
		fileName = fileHeader.Filename
	}

	log.SessionOp(sessionID, "SendDocument").WithField("filename", fileName).WithField("size", fileHeader.Size).Info("Sending document")

	file, err := fileHeader.Open()
	if err != nil {
		log.SessionOp(sessionID, "SendDocument").WithError(err).Error("Failed to open file")
		return router.ResponseInternalError(c, err.Error())
	}
	defer file.Close()

	fileBytes, err := convertFileToBytes(file)
	if err != nil {
		log.SessionOp(sessionID, "SendDocument").WithError(err).Error("Failed to convert file to bytes")
		return router.ResponseInternalError(c, err.Error())
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	messageID, err := h.Manager.SendDocument(requestContext(c), sessionID, phone, fileBytes, mimeType, fileName)
	if err != nil {
		log.SessionOp(sessionID, "SendDocument").WithError(err).Error("Failed to send document")
		return router.ResponseFromError(c, err)
	}
	return router.ResponseSuccessWithData(c, "Success send document", map[string]interface{}{"message_id": messageID})
}

// React reacts to a previously sent message with a single emoji.
func (h *Handler) React(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req typPanel.RequestReact
	if err := c.BodyParser(&req); err != nil {
		log.SessionOp(sessionID, "React").Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if req.MessageID == "" {
		return router.ResponseBadRequest(c, "message_id is required")
	}

	if err := h.Manager.SendReaction(requestContext(c), sessionID, req.Phone, req.MessageID, req.Emoji); err != nil {
		log.SessionOp(sessionID, "React").WithError(err).Error("Failed to send reaction")
		return router.ResponseFromError(c, err)
	}
	return router.ResponseSuccess(c, "Success send reaction")
}
