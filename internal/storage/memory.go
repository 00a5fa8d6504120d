package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/mitienda-app/whatsapp-gateway/internal/models"
)

// MemoryStore holds all data in memory. Used in tests and when
// USE_MEMORY_STORE=true; it enforces the same uniqueness rules as the
// database schema.
type MemoryStore struct {
	sessions      map[uint]*models.Session
	customers     map[uint]*models.Customer
	conversations map[uint]*models.Conversation
	messages      map[uint]*models.Message

	// providerIDs mirrors the unique index on provider_message_id
	providerIDs map[string]uint

	sessionMu sync.RWMutex
	custMu    sync.RWMutex
	convMu    sync.RWMutex
	msgMu     sync.RWMutex

	sessionCounter uint
	custCounter    uint
	convCounter    uint
	msgCounter     uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[uint]*models.Session),
		customers:     make(map[uint]*models.Customer),
		conversations: make(map[uint]*models.Conversation),
		messages:      make(map[uint]*models.Message),
		providerIDs:   make(map[string]uint),
	}
}

// Session operations

func (m *MemoryStore) CreateSession(session *models.Session) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	// Mirror the unique indexes on organization_id and session_name.
	for _, s := range m.sessions {
		if s.OrganizationID == session.OrganizationID || s.SessionName == session.SessionName {
			return ErrDuplicateSession
		}
	}

	m.sessionCounter++
	session.ID = m.sessionCounter
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()
	if session.Status == "" {
		session.Status = models.SessionUninitialized
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSessionByOrg(orgID uint) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	for _, s := range m.sessions {
		if s.OrganizationID == orgID {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetSessionByName(name string) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	for _, s := range m.sessions {
		if s.SessionName == name {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateSession(session *models.Session) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return ErrNotFound
	}
	session.UpdatedAt = time.Now()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetAllSessions() ([]*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	sessions := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Customer operations

func (m *MemoryStore) CreateCustomer(customer *models.Customer) error {
	m.custMu.Lock()
	defer m.custMu.Unlock()

	m.custCounter++
	customer.ID = m.custCounter
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = time.Now()
	m.customers[customer.ID] = customer
	return nil
}

func (m *MemoryStore) GetCustomerByPhone(orgID uint, phone string) (*models.Customer, error) {
	m.custMu.RLock()
	defer m.custMu.RUnlock()

	for _, c := range m.customers {
		if c.OrganizationID == orgID && c.Phone == phone {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// Conversation operations

func (m *MemoryStore) CreateConversation(conv *models.Conversation) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	m.convCounter++
	conv.ID = m.convCounter
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = time.Now()
	if conv.Status == "" {
		conv.Status = models.ConversationActive
	}
	m.conversations[conv.ID] = conv
	return nil
}

func (m *MemoryStore) GetConversation(id uint) (*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	conv, exists := m.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}
	return conv, nil
}

func (m *MemoryStore) GetActiveConversation(orgID uint, phone string) (*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	for _, c := range m.conversations {
		if c.OrganizationID == orgID && c.CustomerPhone == phone && c.Status == models.ConversationActive {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateConversation(conv *models.Conversation) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	if _, exists := m.conversations[conv.ID]; !exists {
		return ErrNotFound
	}
	conv.UpdatedAt = time.Now()
	m.conversations[conv.ID] = conv
	return nil
}

// TouchConversation is read-then-write here; the memory store has no atomic
// increment path.
func (m *MemoryStore) TouchConversation(id uint, lastMessage string, at time.Time) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	conv, exists := m.conversations[id]
	if !exists {
		return ErrNotFound
	}
	conv.LastMessage = lastMessage
	conv.LastMessageAt = &at
	conv.MessagesCount++
	conv.UpdatedAt = time.Now()
	return nil
}

// Message operations

func (m *MemoryStore) CreateMessage(msg *models.Message) error {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()

	// Same rule as the database index: an empty id is a normal value and
	// collides like any other.
	if _, dup := m.providerIDs[msg.ProviderMessageID]; dup {
		return ErrDuplicateMessage
	}

	m.msgCounter++
	msg.ID = m.msgCounter
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = time.Now()
	m.messages[msg.ID] = msg
	m.providerIDs[msg.ProviderMessageID] = msg.ID
	return nil
}

func (m *MemoryStore) GetMessagesByConversation(conversationID uint) ([]*models.Message, error) {
	m.msgMu.RLock()
	defer m.msgMu.RUnlock()

	var messages []*models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			messages = append(messages, msg)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	return messages, nil
}
