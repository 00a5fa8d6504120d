package handlers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/mitienda-app/whatsapp-gateway/internal/bridge"
	"github.com/mitienda-app/whatsapp-gateway/internal/middleware"
	"github.com/mitienda-app/whatsapp-gateway/internal/services"
)

// Polling contract for the operator UI: poll every 5s, back off to 10s once
// a QR is on screen (a human is scanning), give up after 5 minutes and
// require an explicit re-trigger.
const (
	pollIntervalMs   = 5000
	pollIntervalQRMs = 10000
	pollDeadlineS    = 300
)

var validate = validator.New()

// SessionHandler exposes the session manager to the operator UI.
type SessionHandler struct {
	manager *services.SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *services.SessionManager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// GetStatus returns the normalized session state plus the polling contract.
func (h *SessionHandler) GetStatus(c *fiber.Ctx) error {
	orgID := middleware.OrganizationID(c)

	state, err := h.manager.GetStatus(c.UserContext(), orgID)
	if err != nil {
		return h.errorState(c, orgID, err)
	}
	return c.JSON(h.statusResponse(state))
}

// SessionActionRequest is the body of POST /api/whatsapp/session.
type SessionActionRequest struct {
	Action string `json:"action" validate:"required,oneof=reconnect logout change_number"`
}

// HandleAction runs a user-triggered transition and returns the post-action
// state.
func (h *SessionHandler) HandleAction(c *fiber.Ctx) error {
	orgID := middleware.OrganizationID(c)

	var req SessionActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var (
		state *services.SessionState
		err   error
	)
	switch req.Action {
	case "reconnect":
		state, err = h.manager.Reconnect(c.UserContext(), orgID)
	case "logout":
		state, err = h.manager.Logout(c.UserContext(), orgID)
	case "change_number":
		state, err = h.manager.ChangeNumber(c.UserContext(), orgID)
	}
	if err != nil {
		return h.errorState(c, orgID, err)
	}
	return c.JSON(h.statusResponse(state))
}

// errorState maps manager errors for the poller. A transiently unreachable
// bridge is "needs setup / try again", not an opaque 500.
func (h *SessionHandler) errorState(c *fiber.Ctx, orgID uint, err error) error {
	if errors.Is(err, bridge.ErrUnavailable) {
		log.Printf("bridge unavailable for org %d: %v", orgID, err)
		return c.JSON(fiber.Map{
			"status":          services.StatusPending,
			"detail":          "bridge_unavailable",
			"poll_after_ms":   pollIntervalMs,
			"poll_deadline_s": pollDeadlineS,
		})
	}
	log.Printf("ERROR session operation for org %d: %v", orgID, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session operation failed"})
}

func (h *SessionHandler) statusResponse(state *services.SessionState) fiber.Map {
	pollAfter := pollIntervalMs
	if state.QR != nil {
		pollAfter = pollIntervalQRMs
	}
	resp := fiber.Map{
		"status":          state.Status,
		"session_name":    state.SessionName,
		"poll_after_ms":   pollAfter,
		"poll_deadline_s": pollDeadlineS,
	}
	if state.PhoneNumber != "" {
		resp["phone_number"] = state.PhoneNumber
	}
	if state.QR != nil {
		resp["qr"] = state.QR
	}
	return resp
}
