package storage

import (
	"errors"
	"time"

	"github.com/mitienda-app/whatsapp-gateway/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateMessage is returned by CreateMessage when a message with
	// the same provider message id already exists. Callers treat it as
	// "already processed", not as a failure.
	ErrDuplicateMessage = errors.New("message already exists")

	// ErrDuplicateSession is returned by CreateSession when the organization
	// already has a session. Callers re-query and use the existing row.
	ErrDuplicateSession = errors.New("session already exists")
)

// Store defines the persistence operations the gateway needs.
type Store interface {
	// Session operations
	CreateSession(session *models.Session) error
	GetSessionByOrg(orgID uint) (*models.Session, error)
	GetSessionByName(name string) (*models.Session, error)
	UpdateSession(session *models.Session) error
	GetAllSessions() ([]*models.Session, error)

	// Customer operations
	CreateCustomer(customer *models.Customer) error
	GetCustomerByPhone(orgID uint, phone string) (*models.Customer, error)

	// Conversation operations
	CreateConversation(conv *models.Conversation) error
	GetConversation(id uint) (*models.Conversation, error)
	GetActiveConversation(orgID uint, phone string) (*models.Conversation, error)
	UpdateConversation(conv *models.Conversation) error

	// TouchConversation updates the denormalized preview fields and bumps
	// the message counter. Implementations increment atomically when the
	// backend supports it; the counter is best-effort either way.
	TouchConversation(id uint, lastMessage string, at time.Time) error

	// Message operations
	CreateMessage(msg *models.Message) error
	GetMessagesByConversation(conversationID uint) ([]*models.Message, error)
}
