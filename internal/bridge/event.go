package bridge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// EventKind classifies a parsed webhook event.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventMessage
	EventSessionStatus
)

// Event is the normalized form of one webhook delivery. The rest of the
// pipeline only ever sees this; raw payload shapes stop here.
type Event struct {
	Kind    EventKind
	Session string
	Message *MessageEvent
	Status  *StatusEvent
}

// MessageEvent is a normalized inbound message.
type MessageEvent struct {
	ID        string
	ChatID    string
	FromMe    bool
	Body      string
	MediaURL  string
	MediaType string
}

// StatusEvent is a session.status notification.
type StatusEvent struct {
	Status string
}

// directChatRe matches a direct-message chat address: digits followed by a
// direct-chat suffix.
var directChatRe = regexp.MustCompile(`^\d{5,20}@(c\.us|s\.whatsapp\.net)$`)

// IsGroupChat reports whether the chat id addresses a group.
func IsGroupChat(chatID string) bool {
	return strings.HasSuffix(chatID, "@g.us")
}

// IsBroadcast reports whether the chat id is the status/broadcast
// pseudo-chat.
func IsBroadcast(chatID string) bool {
	return chatID == "status@broadcast" || strings.HasSuffix(chatID, "@broadcast")
}

// IsDirectChat reports whether the chat id has a recognized direct-message
// shape.
func IsDirectChat(chatID string) bool {
	return directChatRe.MatchString(chatID)
}

// PhoneFromChatID strips the chat suffix, leaving the bare number.
func PhoneFromChatID(chatID string) string {
	if i := strings.Index(chatID, "@"); i >= 0 {
		return chatID[:i]
	}
	return chatID
}

// ParseEvent decodes a webhook body into a normalized Event. The bridge is
// inconsistent about where it puts things: the event type may live under
// "event", "type" or "eventType", and the message payload under "payload",
// "message" or "data". Unknown or catch-all event types come back as
// EventUnhandled, never as an error the handler would have to propagate.
func ParseEvent(body []byte) (*Event, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}

	eventType := stringAt(raw, "event", "type", "eventType")
	session := stringAt(raw, "session", "sessionName", "instance")

	payload := mapAt(raw, "payload", "message", "data")
	if payload == nil {
		payload = raw
	}

	switch eventType {
	case "message.any":
		// The bridge delivers message.any alongside message for the same
		// event; processing both would double-ingest. Dropped regardless of
		// content.
		return &Event{Kind: EventUnhandled, Session: session}, nil
	case "message":
		msg := parseMessagePayload(payload)
		return &Event{Kind: EventMessage, Session: session, Message: msg}, nil
	case "session.status":
		status := stringAt(payload, "status", "state")
		return &Event{Kind: EventSessionStatus, Session: session, Status: &StatusEvent{Status: status}}, nil
	default:
		return &Event{Kind: EventUnhandled, Session: session}, nil
	}
}

func parseMessagePayload(p map[string]interface{}) *MessageEvent {
	msg := &MessageEvent{
		ID:     stringAt(p, "id", "key.id", "_data.id._serialized"),
		ChatID: stringAt(p, "from", "chatId", "key.remoteJid"),
		FromMe: boolAt(p, "fromMe", "key.fromMe"),
		Body:   stringAt(p, "body", "text", "caption", "_data.body"),
	}

	msg.MediaURL = stringAt(p, "mediaUrl", "media.url", "url", "_data.mediaUrl")
	mimeType := stringAt(p, "mimetype", "media.mimetype", "_data.mimetype")
	msg.MediaType = inferMediaType(p, mimeType)

	// A media message with no caption still needs a non-empty body for the
	// conversation preview.
	if msg.Body == "" && msg.MediaType != "" {
		msg.Body = "[" + msg.MediaType + "]"
	}

	return msg
}

// inferMediaType resolves the media kind with a fixed precedence: the
// payload's declared type, then the MIME prefix, then the presence of a
// type-specific sub-object.
func inferMediaType(p map[string]interface{}, mimeType string) string {
	declared := stringAt(p, "type", "messageType")
	switch declared {
	case "image", "audio", "video", "document", "ptt", "sticker":
		if declared == "ptt" {
			return "audio"
		}
		if declared == "sticker" {
			return "image"
		}
		return declared
	}

	if mimeType != "" {
		switch {
		case strings.HasPrefix(mimeType, "image/"):
			return "image"
		case strings.HasPrefix(mimeType, "audio/"):
			return "audio"
		case strings.HasPrefix(mimeType, "video/"):
			return "video"
		case strings.HasPrefix(mimeType, "application/"):
			return "document"
		}
	}

	for _, key := range []string{"image", "audio", "video", "document"} {
		if _, ok := p[key].(map[string]interface{}); ok {
			return key
		}
	}
	return ""
}

// stringAt returns the first string found at any of the candidate paths.
// A path may be dotted ("key.id") to descend into nested objects.
func stringAt(m map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := valueAt(m, path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func boolAt(m map[string]interface{}, paths ...string) bool {
	for _, path := range paths {
		if v, ok := valueAt(m, path); ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

func mapAt(m map[string]interface{}, keys ...string) map[string]interface{} {
	for _, key := range keys {
		if v, ok := m[key].(map[string]interface{}); ok {
			return v
		}
	}
	return nil
}

func valueAt(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	current := m
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		current, ok = v.(map[string]interface{})
		if !ok {
			return nil, false
		}
	}
	return nil, false
}
