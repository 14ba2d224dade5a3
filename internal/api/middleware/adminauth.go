package middleware

import (
	"encoding/base64"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/anova4all/gateway/internal/config"
	"github.com/anova4all/gateway/internal/security"
)

// privateRanges are the RFC1918 blocks admitted without credentials.
var privateRanges = []*net.IPNet{
	mustParseCIDR("10.0.0.0/8"),
	mustParseCIDR("172.16.0.0/12"),
	mustParseCIDR("192.168.0.0/16"),
}

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// AdminAuth admits loopback and RFC1918 clients unconditionally; every
// other client must present HTTP Basic credentials matching cfg's
// admin username and password.
func AdminAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isTrustedClient(c.IP()) {
			return c.Next()
		}

		reqUser, reqPass, hasBasic := basicAuth(c)
		if !hasBasic ||
			!security.ConstantTimeEquals(reqUser, cfg.AdminUsername) ||
			!security.ConstantTimeEquals(reqPass, cfg.AdminPassword) {
			c.Set("WWW-Authenticate", `Basic realm="admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "admin credentials required"})
		}

		return c.Next()
	}
}

func isTrustedClient(ip string) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	if addr.IsLoopback() {
		return true
	}
	for _, block := range privateRanges {
		if block.Contains(addr) {
			return true
		}
	}
	return false
}

func basicAuth(c *fiber.Ctx) (user, pass string, ok bool) {
	const prefix = "Basic "
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
