package models

import (
	"gorm.io/gorm"
)

// Bridge-side session states as reported by the WhatsApp bridge.
const (
	SessionUninitialized = "UNINITIALIZED"
	SessionStarting      = "STARTING"
	SessionScanQR        = "SCAN_QR"
	SessionWorking       = "WORKING"
	SessionFailed        = "FAILED"
	SessionStopped       = "STOPPED"
)

// Session is the per-organization pairing record against the bridge.
// It is created lazily on the first status check and never deleted, only
// transitioned. The QR payload is transient and intentionally not stored.
type Session struct {
	gorm.Model
	OrganizationID uint   `json:"organization_id" gorm:"uniqueIndex"`
	SessionName    string `json:"session_name" gorm:"uniqueIndex"`
	Status         string `json:"status" gorm:"default:'UNINITIALIZED'"`
	OwnPhoneNumber string `json:"own_phone_number"`
	Connected      bool   `json:"connected" gorm:"default:false"`

	// Optional per-tenant bridge overrides; empty falls back to the
	// process defaults.
	BridgeURL    string `json:"-"`
	BridgeAPIKey string `json:"-"`
}
