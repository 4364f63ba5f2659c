package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the caller identity set by the Gateway.
// Routes behind it require a nickname; the gateway resolved the token to
// a user before forwarding.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		nickname := c.Get("X-User-Nickname")
		if nickname == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-Nickname — request must come through gateway with auth context",
			})
		}

		c.Locals("user_nickname", nickname)
		return c.Next()
	}
}
