package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/mitienda-app/whatsapp-gateway/internal/middleware"
	"github.com/mitienda-app/whatsapp-gateway/internal/services"
)

// SendHandler is the manual-reply path the CRM UI uses.
type SendHandler struct {
	dispatcher *services.Dispatcher
}

// NewSendHandler creates a new send handler
func NewSendHandler(dispatcher *services.Dispatcher) *SendHandler {
	return &SendHandler{dispatcher: dispatcher}
}

// SendRequest is the body of POST /api/whatsapp/send.
type SendRequest struct {
	To      string `json:"to" validate:"required,numeric,min=8,max=20"`
	Message string `json:"message" validate:"required,max=4096"`
}

// Send transmits an operator-authored message through the dispatcher.
func (h *SendHandler) Send(c *fiber.Ctx) error {
	orgID := middleware.OrganizationID(c)

	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	msg, err := h.dispatcher.Send(c.UserContext(), orgID, req.To, req.Message)
	if err != nil {
		log.Printf("ERROR sending message for org %d: %v", orgID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "message could not be sent"})
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}
