package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/org-1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"org-1","status":"WORKING","me":{"id":"5215550000001@c.us","pushName":"Shop"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	info, err := client.GetSession(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "WORKING", info.Status)
	require.NotNil(t, info.Me)
	assert.Equal(t, "5215550000001@c.us", info.Me.ID)
}

func TestCreateSessionConflictIsSessionExists(t *testing.T) {
	for _, code := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"session already exists"}`))
		}))

		client := NewClient(Config{BaseURL: srv.URL})
		err := client.CreateSession(context.Background(), "org-1")
		assert.ErrorIs(t, err, ErrSessionExists, "status %d", code)
		srv.Close()
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.GetSession(context.Background(), "org-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(Config{BaseURL: srv.URL})
	err := client.StartSession(context.Background(), "org-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientErrorIsTypedBridgeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown session"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.GetSession(context.Background(), "org-9")

	var bridgeErr *Error
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, http.StatusNotFound, bridgeErr.StatusCode)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestGetQRRawShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/org-1/auth/qr", r.URL.Path)
		assert.Equal(t, "raw", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"value":"2@AbCdEf=="}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	qr, err := client.GetQR(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "2@AbCdEf==", qr.Value)
	assert.False(t, qr.IsImage)
}

func TestGetQRLegacyImageShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"mimetype":"image/png","data":"iVBORw0KGgo="}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	qr, err := client.GetQR(context.Background(), "org-1")
	require.NoError(t, err)
	assert.True(t, qr.IsImage)
	assert.Equal(t, "image/png", qr.MimeType)
	assert.Equal(t, "iVBORw0KGgo=", qr.Value)
}

func TestSendTextIDLocations(t *testing.T) {
	cases := []struct {
		name string
		resp string
		want string
	}{
		{"top-level id", `{"id":"msg-1"}`, "msg-1"},
		{"key.id", `{"key":{"id":"msg-2"}}`, "msg-2"},
		{"no id", `{"ack":1}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/sendText", r.URL.Path)
				_, _ = w.Write([]byte(tc.resp))
			}))
			defer srv.Close()

			client := NewClient(Config{BaseURL: srv.URL})
			id, err := client.SendText(context.Background(), "org-1", "5215551234567@c.us", "hola")
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}
}
