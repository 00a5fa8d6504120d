package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventBasicMessage(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"session": "org-42",
		"payload": {
			"id": "abc123",
			"from": "5215551234567@c.us",
			"fromMe": false,
			"body": "Hola"
		}
	}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)

	assert.Equal(t, EventMessage, event.Kind)
	assert.Equal(t, "org-42", event.Session)
	require.NotNil(t, event.Message)
	assert.Equal(t, "abc123", event.Message.ID)
	assert.Equal(t, "5215551234567@c.us", event.Message.ChatID)
	assert.False(t, event.Message.FromMe)
	assert.Equal(t, "Hola", event.Message.Body)
}

func TestParseEventTypeKeyDrift(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"event key", `{"event":"message","session":"org-1","payload":{"id":"m1","from":"521555@c.us","body":"hi"}}`},
		{"type key", `{"type":"message","session":"org-1","payload":{"id":"m1","from":"521555@c.us","body":"hi"}}`},
		{"eventType key", `{"eventType":"message","session":"org-1","payload":{"id":"m1","from":"521555@c.us","body":"hi"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, EventMessage, event.Kind)
			assert.Equal(t, "m1", event.Message.ID)
		})
	}
}

func TestParseEventPayloadKeyDrift(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"payload key", `{"event":"message","session":"s","payload":{"id":"m2","from":"52@c.us","body":"x"}}`},
		{"message key", `{"event":"message","session":"s","message":{"id":"m2","from":"52@c.us","body":"x"}}`},
		{"data key", `{"event":"message","session":"s","data":{"id":"m2","from":"52@c.us","body":"x"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.body))
			require.NoError(t, err)
			require.NotNil(t, event.Message)
			assert.Equal(t, "m2", event.Message.ID)
		})
	}
}

func TestParseEventMessageAnySuppressed(t *testing.T) {
	// message.any duplicates the message event under a second tag; it must
	// be dropped even when its payload would pass every filter.
	body := []byte(`{
		"event": "message.any",
		"session": "org-42",
		"payload": {"id": "abc123", "from": "5215551234567@c.us", "fromMe": false, "body": "Hola"}
	}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventUnhandled, event.Kind)
	assert.Nil(t, event.Message)
}

func TestParseEventSessionStatus(t *testing.T) {
	body := []byte(`{"event":"session.status","session":"org-7","payload":{"status":"WORKING"}}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventSessionStatus, event.Kind)
	assert.Equal(t, "org-7", event.Session)
	require.NotNil(t, event.Status)
	assert.Equal(t, "WORKING", event.Status.Status)
}

func TestParseEventUnknownType(t *testing.T) {
	event, err := ParseEvent([]byte(`{"event":"reaction","session":"org-1","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, EventUnhandled, event.Kind)
}

func TestParseEventMalformedJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{nope`))
	assert.Error(t, err)
}

func TestParseEventNestedKeyLocations(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"session": "org-1",
		"payload": {
			"key": {"id": "nested-id", "remoteJid": "5215559999999@s.whatsapp.net", "fromMe": true},
			"_data": {"body": "nested body"}
		}
	}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)
	msg := event.Message
	assert.Equal(t, "nested-id", msg.ID)
	assert.Equal(t, "5215559999999@s.whatsapp.net", msg.ChatID)
	assert.True(t, msg.FromMe)
	assert.Equal(t, "nested body", msg.Body)
}

func TestMediaTypePrecedence(t *testing.T) {
	// Declared type wins over MIME, MIME over sub-object presence.
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			"declared type",
			`{"event":"message","session":"s","payload":{"id":"a","from":"52@c.us","type":"audio","mimetype":"image/jpeg"}}`,
			"audio",
		},
		{
			"ptt is audio",
			`{"event":"message","session":"s","payload":{"id":"a","from":"52@c.us","type":"ptt"}}`,
			"audio",
		},
		{
			"mime prefix",
			`{"event":"message","session":"s","payload":{"id":"a","from":"52@c.us","mimetype":"video/mp4"}}`,
			"video",
		},
		{
			"sub-object presence",
			`{"event":"message","session":"s","payload":{"id":"a","from":"52@c.us","document":{"url":"http://x/doc.pdf"}}}`,
			"document",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := ParseEvent([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, event.Message.MediaType)
		})
	}
}

func TestMediaPlaceholderBody(t *testing.T) {
	// A caption-less image still needs a preview body.
	body := []byte(`{"event":"message","session":"s","payload":{"id":"a","from":"52@c.us","type":"image","mediaUrl":"http://x/y.jpg"}}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "[image]", event.Message.Body)
	assert.Equal(t, "http://x/y.jpg", event.Message.MediaURL)
}

func TestMediaURLKeyDrift(t *testing.T) {
	body := []byte(`{"event":"message","session":"s","payload":{"id":"a","from":"52@c.us","media":{"url":"http://m/u","mimetype":"audio/ogg"},"body":"voice note"}}`)

	event, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "http://m/u", event.Message.MediaURL)
	assert.Equal(t, "audio", event.Message.MediaType)
	assert.Equal(t, "voice note", event.Message.Body)
}

func TestChatIDHelpers(t *testing.T) {
	assert.True(t, IsGroupChat("1234567-890@g.us"))
	assert.False(t, IsGroupChat("5215551234567@c.us"))

	assert.True(t, IsBroadcast("status@broadcast"))
	assert.False(t, IsBroadcast("5215551234567@c.us"))

	assert.True(t, IsDirectChat("5215551234567@c.us"))
	assert.True(t, IsDirectChat("5215551234567@s.whatsapp.net"))
	assert.False(t, IsDirectChat("not-a-chat"))
	assert.False(t, IsDirectChat("abc@c.us"))
	assert.False(t, IsDirectChat("1234567-890@g.us"))

	assert.Equal(t, "5215551234567", PhoneFromChatID("5215551234567@c.us"))
	assert.Equal(t, "raw", PhoneFromChatID("raw"))
}
