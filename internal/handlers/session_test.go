package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitienda-app/whatsapp-gateway/internal/models"
)

func TestStatusRequiresOrganization(t *testing.T) {
	app, _ := newTestApp(&stubBridge{status: models.SessionWorking})

	req := httptest.NewRequest("GET", "/api/whatsapp/status", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/whatsapp/status", nil)
	req.Header.Set("X-Organization-ID", "zero")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestStatusReturnsNormalizedStateAndPollContract(t *testing.T) {
	app, _ := newTestApp(&stubBridge{status: models.SessionScanQR})

	req := httptest.NewRequest("GET", "/api/whatsapp/status", nil)
	req.Header.Set("X-Organization-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "scan_qr", body["status"])
	assert.Equal(t, "org-42", body["session_name"])
	require.Contains(t, body, "qr")
	// With a QR on screen the poller backs off to the slow interval.
	assert.Equal(t, float64(10000), body["poll_after_ms"])
	assert.Equal(t, float64(300), body["poll_deadline_s"])
}

func TestStatusWorkingUsesFastPollInterval(t *testing.T) {
	app, _ := newTestApp(&stubBridge{status: models.SessionWorking})

	req := httptest.NewRequest("GET", "/api/whatsapp/status", nil)
	req.Header.Set("X-Organization-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "working", body["status"])
	assert.Equal(t, float64(5000), body["poll_after_ms"])
}

func TestSessionActionValidation(t *testing.T) {
	app, _ := newTestApp(&stubBridge{status: models.SessionWorking})

	req := httptest.NewRequest("POST", "/api/whatsapp/session", strings.NewReader(`{"action":"reboot"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organization-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSessionReconnectAction(t *testing.T) {
	app, _ := newTestApp(&stubBridge{status: models.SessionScanQR})

	req := httptest.NewRequest("POST", "/api/whatsapp/session", strings.NewReader(`{"action":"reconnect"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organization-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "scan_qr", body["status"])
}

func TestSendValidation(t *testing.T) {
	app, _ := newTestApp(&stubBridge{status: models.SessionWorking})

	req := httptest.NewRequest("POST", "/api/whatsapp/send", strings.NewReader(`{"to":"","message":""}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organization-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSendCreatesOutboundMessage(t *testing.T) {
	app, store := newTestApp(&stubBridge{status: models.SessionWorking})
	require.NoError(t, store.CreateSession(&models.Session{
		OrganizationID: 42,
		SessionName:    "org-42",
		Status:         models.SessionWorking,
		OwnPhoneNumber: "5215550000001",
	}))

	req := httptest.NewRequest("POST", "/api/whatsapp/send",
		strings.NewReader(`{"to":"5215551234567","message":"Su pedido va en camino"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organization-ID", "42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	var msg models.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, models.DirectionOutbound, msg.Direction)
	assert.Equal(t, "prov-1", msg.ProviderMessageID)
}
