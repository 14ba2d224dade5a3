package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anova4all/gateway/internal/gwerrors"
)

// writeError maps a gwerrors.Kind onto the HTTP status table: 400
// validation, 401 auth, 404 not-found/no-BLE-device, 503 connection
// failures reaching the appliance, 500 everything else.
func writeError(c *fiber.Ctx, err error) error {
	kind, ok := gwerrors.KindOf(err)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	status := fiber.StatusInternalServerError
	switch kind {
	case gwerrors.KindValidation:
		status = fiber.StatusBadRequest
	case gwerrors.KindAuth:
		status = fiber.StatusUnauthorized
	case gwerrors.KindNotFound:
		status = fiber.StatusNotFound
	case gwerrors.KindConnection:
		status = fiber.StatusServiceUnavailable
	case gwerrors.KindCommandTimeout:
		status = fiber.StatusGatewayTimeout
	case gwerrors.KindTransportUnsupported, gwerrors.KindFrame, gwerrors.KindFatal:
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
