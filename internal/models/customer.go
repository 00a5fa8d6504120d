package models

import (
	"gorm.io/gorm"
)

// Customer is a minimal stub auto-created when a conversation is opened for
// an unknown phone number. The CRM owns the full record; the gateway only
// needs enough to link conversations.
type Customer struct {
	gorm.Model
	OrganizationID uint   `json:"organization_id" gorm:"index:idx_cust_org_phone"`
	Name           string `json:"name"`
	Phone          string `json:"phone" gorm:"index:idx_cust_org_phone"`
}
