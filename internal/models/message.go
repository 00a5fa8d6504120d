package models

import (
	"gorm.io/gorm"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	MessageReceived = "received"
	MessageSent     = "sent"
)

// Message is an append-only record of one WhatsApp message. The unique
// index on ProviderMessageID is the authoritative dedup mechanism for
// webhook redelivery; outbound messages carry a locally generated id when
// the bridge returns none.
type Message struct {
	gorm.Model
	ConversationID    uint   `json:"conversation_id" gorm:"index"`
	OrganizationID    uint   `json:"organization_id" gorm:"index"`
	Direction         string `json:"direction"`
	FromNumber        string `json:"from_number"`
	ToNumber          string `json:"to_number"`
	Body              string `json:"body"`
	MediaURL          string `json:"media_url"`
	MediaType         string `json:"media_type"`
	Status            string `json:"status"`
	ProviderMessageID string `json:"provider_message_id" gorm:"uniqueIndex"`
}
