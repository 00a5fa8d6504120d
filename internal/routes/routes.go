package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mitienda-app/whatsapp-gateway/internal/handlers"
	"github.com/mitienda-app/whatsapp-gateway/internal/middleware"
	"github.com/mitienda-app/whatsapp-gateway/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, pipeline *services.Pipeline, manager *services.SessionManager, dispatcher *services.Dispatcher) {
	webhookHandler := handlers.NewWebhookHandler(pipeline)
	sessionHandler := handlers.NewSessionHandler(manager)
	sendHandler := handlers.NewSendHandler(dispatcher)

	app.Get("/health", handlers.HealthCheck)

	// ========== WEBHOOK ROUTES ==========
	// The bridge authenticates by knowing the URL; signature validation is
	// not part of its protocol. Always ACKs, see the handler.
	webhooks := app.Group("/webhook")
	webhooks.Post("/whatsapp", webhookHandler.HandleBridgeEvent)

	// ========== OPERATOR API ==========
	api := app.Group("/api/whatsapp", middleware.RequireOrganization())
	api.Get("/status", sessionHandler.GetStatus)
	api.Post("/session", sessionHandler.HandleAction)
	api.Post("/send", sendHandler.Send)
}
