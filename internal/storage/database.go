package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mitienda-app/whatsapp-gateway/internal/models"
)

// DatabaseStore implements Store on top of GORM/PostgreSQL.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Session operations

func (s *DatabaseStore) CreateSession(session *models.Session) error {
	err := s.db.Create(session).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateSession
	}
	return err
}

func (s *DatabaseStore) GetSessionByOrg(orgID uint) (*models.Session, error) {
	var session models.Session
	err := s.db.Where("organization_id = ?", orgID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *DatabaseStore) GetSessionByName(name string) (*models.Session, error) {
	var session models.Session
	err := s.db.Where("session_name = ?", name).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *DatabaseStore) UpdateSession(session *models.Session) error {
	return s.db.Save(session).Error
}

func (s *DatabaseStore) GetAllSessions() ([]*models.Session, error) {
	var sessions []*models.Session
	if err := s.db.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Customer operations

func (s *DatabaseStore) CreateCustomer(customer *models.Customer) error {
	return s.db.Create(customer).Error
}

func (s *DatabaseStore) GetCustomerByPhone(orgID uint, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Where("organization_id = ? AND phone = ?", orgID, phone).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// Conversation operations

func (s *DatabaseStore) CreateConversation(conv *models.Conversation) error {
	return s.db.Create(conv).Error
}

func (s *DatabaseStore) GetConversation(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.First(&conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *DatabaseStore) GetActiveConversation(orgID uint, phone string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Where("organization_id = ? AND customer_phone = ? AND status = ?",
		orgID, phone, models.ConversationActive).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *DatabaseStore) UpdateConversation(conv *models.Conversation) error {
	return s.db.Save(conv).Error
}

// TouchConversation bumps the counter with a SQL expression so concurrent
// deliveries do not lose increments.
func (s *DatabaseStore) TouchConversation(id uint, lastMessage string, at time.Time) error {
	return s.db.Model(&models.Conversation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_message":    lastMessage,
		"last_message_at": at,
		"messages_count":  gorm.Expr("messages_count + ?", 1),
	}).Error
}

// Message operations

func (s *DatabaseStore) CreateMessage(msg *models.Message) error {
	err := s.db.Create(msg).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateMessage
	}
	return err
}

func (s *DatabaseStore) GetMessagesByConversation(conversationID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at asc").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
