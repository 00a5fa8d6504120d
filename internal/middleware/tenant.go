package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const organizationKey = "organizationID"

// RequireOrganization extracts the tenant from the X-Organization-ID header
// set by the auth layer in front of this service. Requests without it never
// reach the session or send handlers.
func RequireOrganization() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get("X-Organization-ID")
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing organization",
			})
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid organization id",
			})
		}
		c.Locals(organizationKey, uint(id))
		return c.Next()
	}
}

// OrganizationID returns the tenant set by RequireOrganization.
func OrganizationID(c *fiber.Ctx) uint {
	if id, ok := c.Locals(organizationKey).(uint); ok {
		return id
	}
	return 0
}
