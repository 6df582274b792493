package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	typPanel "github.com/anekolabs/whatsapp-admin-api/internal/types"
	pkgAuth "github.com/anekolabs/whatsapp-admin-api/pkg/auth"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
)

// IssuePanelToken mints a JWT for a named panel operator. The route itself
// is guarded by the admin secret, so token issuance stays an administrative
// act.
func IssuePanelToken(c *fiber.Ctx) error {
	var req typPanel.RequestPanelToken
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	operator := strings.TrimSpace(req.Operator)
	if operator == "" {
		return router.ResponseBadRequest(c, "operator is required")
	}

	token, err := pkgAuth.GeneratePanelToken(operator)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	log.Print(c).WithField("operator", operator).Info("Panel token issued")
	return router.ResponseSuccessWithData(c, "Token issued", map[string]interface{}{
		"token":      token,
		"expires_in": pkgAuth.PanelTokenTTL.String(),
	})
}
