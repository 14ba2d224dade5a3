// Package middleware holds the gateway's two HTTP auth schemes: per-device
// secret-key checks and admin-network/Basic-auth checks.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/anova4all/gateway/internal/anovawifi"
	"github.com/anova4all/gateway/internal/security"
)

// DeviceLocalsKey is where DeviceAuth stashes the resolved *anovawifi.Device
// for downstream handlers.
const DeviceLocalsKey = "device"

// DeviceAuth resolves the {id} path parameter against manager, then
// requires a secret_key query parameter or Authorization: Bearer header
// matching the device's stored secret key. On success the device is
// stashed in c.Locals(DeviceLocalsKey).
func DeviceAuth(manager *anovawifi.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		device, ok := manager.GetDevice(id)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "device not found"})
		}

		key := c.Query("secret_key")
		if key == "" {
			key = bearerToken(c.Get("Authorization"))
		}
		if key == "" || !security.ConstantTimeEquals(key, device.SecretKey()) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or missing secret key"})
		}

		c.Locals(DeviceLocalsKey, device)
		return c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
