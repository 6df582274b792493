package index

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
)

func Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "WhatsApp Admin Panel API is running")
}
