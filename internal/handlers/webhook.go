package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/mitienda-app/whatsapp-gateway/internal/services"
)

// WebhookHandler receives event deliveries from the bridge.
type WebhookHandler struct {
	pipeline *services.Pipeline
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(pipeline *services.Pipeline) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline}
}

// HandleBridgeEvent processes one webhook delivery. It always acknowledges
// with 200: the bridge retries non-success responses and the pipeline's
// dedup makes a retry wasteful, not harmful, so nothing here is allowed to
// turn into a failed acknowledgment.
func (h *WebhookHandler) HandleBridgeEvent(c *fiber.Ctx) error {
	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	if err := h.pipeline.Process(c.UserContext(), body); err != nil {
		log.Printf("ERROR processing webhook event: %v", err)
	}

	return c.JSON(fiber.Map{"status": "received"})
}
