package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ConversationActive = "active"
	ConversationClosed = "closed"
)

// Conversation is the thread between one organization and one customer
// phone number. At most one active conversation exists per (organization,
// phone) pair; MessagesCount and LastMessage* are denormalized previews,
// the messages table remains the source of truth.
type Conversation struct {
	gorm.Model
	OrganizationID uint       `json:"organization_id" gorm:"index:idx_conv_org_phone"`
	CustomerID     uint       `json:"customer_id"`
	CustomerPhone  string     `json:"customer_phone" gorm:"index:idx_conv_org_phone"`
	Status         string     `json:"status" gorm:"default:'active'"`
	IsBotActive    bool       `json:"is_bot_active" gorm:"default:true"`
	LastMessage    string     `json:"last_message"`
	LastMessageAt  *time.Time `json:"last_message_at"`
	MessagesCount  int        `json:"messages_count" gorm:"default:0"`
}
