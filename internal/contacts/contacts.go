package contacts

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	typPanel "github.com/anekolabs/whatsapp-admin-api/internal/types"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
	"github.com/anekolabs/whatsapp-admin-api/pkg/store"
	"github.com/anekolabs/whatsapp-admin-api/pkg/validation"
)

// Handler serves the address book endpoints.
type Handler struct {
	Store *store.Store
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// Create adds one contact. The phone number is stored normalized.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req typPanel.RequestContact
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if strings.TrimSpace(req.Name) == "" {
		return router.ResponseBadRequest(c, "name is required")
	}

	phone, err := validation.NormalizePhone(req.Phone)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	contact, err := h.Store.CreateContact(requestContext(c), strings.TrimSpace(req.Name), phone, req.Notes)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseCreatedWithData(c, "Contact created", contact)
}

// List returns the whole address book.
func (h *Handler) List(c *fiber.Ctx) error {
	contacts, err := h.Store.ListContacts(requestContext(c))
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccessWithData(c, "Success get contacts", contacts)
}

// Get returns one contact.
func (h *Handler) Get(c *fiber.Ctx) error {
	contact, err := h.Store.GetContact(requestContext(c), c.Params("id"))
	if err != nil {
		return router.ResponseNotFound(c, "Contact not found")
	}
	return router.ResponseSuccessWithData(c, "Success get contact", contact)
}

// Update rewrites one contact.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req typPanel.RequestContact
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}
	if strings.TrimSpace(req.Name) == "" {
		return router.ResponseBadRequest(c, "name is required")
	}

	phone, err := validation.NormalizePhone(req.Phone)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	if err := h.Store.UpdateContact(requestContext(c), c.Params("id"), strings.TrimSpace(req.Name), phone, req.Notes); err != nil {
		if err == store.ErrNotFound {
			return router.ResponseNotFound(c, "Contact not found")
		}
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Contact updated")
}

// Delete removes one contact.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.Store.DeleteContact(requestContext(c), c.Params("id")); err != nil {
		if err == store.ErrNotFound {
			return router.ResponseNotFound(c, "Contact not found")
		}
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseNoContent(c)
}

// Import loads contacts from a CSV upload with a name,phone[,notes] header.
// Rows with unusable phone numbers are skipped, counted, and reported; one
// bad row never aborts the import.
func (h *Handler) Import(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return router.ResponseBadRequest(c, "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return router.ResponseBadRequest(c, "invalid CSV: "+err.Error())
	}
	if len(records) < 2 {
		return router.ResponseBadRequest(c, "CSV has no data rows")
	}

	ctx := requestContext(c)
	imported, skipped := 0, 0
	for i, record := range records[1:] {
		if len(record) < 2 {
			skipped++
			continue
		}
		name := strings.TrimSpace(record[0])
		phone, err := validation.NormalizePhone(record[1])
		if name == "" || err != nil {
			log.Print(c).WithField("row", i+2).Warn("Skipping unusable contact row")
			skipped++
			continue
		}
		notes := ""
		if len(record) > 2 {
			notes = strings.TrimSpace(record[2])
		}
		if _, err := h.Store.UpsertContact(ctx, name, phone, notes); err != nil {
			log.Print(c).WithField("row", i+2).WithError(err).Warn("Failed to import contact row")
			skipped++
			continue
		}
		imported++
	}

	return router.ResponseSuccessWithData(c, fmt.Sprintf("Imported %d contacts", imported), map[string]interface{}{
		"imported": imported,
		"skipped":  skipped,
	})
}

// Export streams the address book as CSV.
func (h *Handler) Export(c *fiber.Ctx) error {
	contacts, err := h.Store.ListContacts(requestContext(c))
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	var out strings.Builder
	writer := csv.NewWriter(&out)
	_ = writer.Write([]string{"name", "phone", "notes"})
	for _, contact := range contacts {
		_ = writer.Write([]string{contact.Name, contact.Phone, contact.Notes})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="contacts.csv"`)
	return c.SendString(out.String())
}
