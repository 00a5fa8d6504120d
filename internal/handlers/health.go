package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthCheck returns service health for monitoring
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "whatsapp-gateway",
		"version": "1.0.0",
	})
}
