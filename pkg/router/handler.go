package router

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

func HttpErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	response := &Response{
		Status:  false,
		Code:    code,
		Message: fmt.Sprintf("%v", message),
		Error:   fmt.Sprintf("%v", message),
	}
	logError(c, response.Code, response.Message)
	return c.Status(response.Code).JSON(response)
}

// ResponseFromError maps a session-core error to the HTTP status its kind
// implies. Anything the core did not classify is an internal error.
func ResponseFromError(c *fiber.Ctx, err error) error {
	switch whatsapp.ErrorKind(err) {
	case whatsapp.KindValidation:
		return ResponseBadRequest(c, err.Error())
	case whatsapp.KindNotFound:
		return ResponseNotFound(c, err.Error())
	case whatsapp.KindFatalConnection, whatsapp.KindRecoveryFailed:
		return ResponseServiceUnavailable(c, err.Error())
	case whatsapp.KindInitTimeout:
		return ResponseServiceUnavailable(c, err.Error())
	default:
		return ResponseInternalError(c, err.Error())
	}
}
