package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mitienda-app/whatsapp-gateway/internal/models"
	"github.com/mitienda-app/whatsapp-gateway/internal/storage"
)

// Dispatcher sends outbound messages through the bridge and records them.
type Dispatcher struct {
	store  storage.Store
	bridge BridgeFactory
}

// NewDispatcher creates an outbound dispatcher
func NewDispatcher(store storage.Store, factory BridgeFactory) *Dispatcher {
	return &Dispatcher{store: store, bridge: factory}
}

// Send transmits body to toPhone on the organization's session and persists
// the outbound message. A send failure is returned to the caller; anything
// already persisted for the inbound side stays put.
func (d *Dispatcher) Send(ctx context.Context, orgID uint, toPhone, body string) (*models.Message, error) {
	session, err := d.store.GetSessionByOrg(orgID)
	if err != nil {
		return nil, fmt.Errorf("no session for organization %d: %w", orgID, err)
	}

	client := d.bridge(session)
	providerID, err := client.SendText(ctx, session.SessionName, toPhone+"@c.us", body)
	if err != nil {
		return nil, err
	}
	if providerID == "" {
		// Bridge gave us nothing to dedup on; mint a local id so the
		// uniqueness invariant on messages still holds.
		providerID = uuid.NewString()
	}

	conv, err := d.conversationFor(orgID, toPhone)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID:    conv.ID,
		OrganizationID:    orgID,
		Direction:         models.DirectionOutbound,
		FromNumber:        session.OwnPhoneNumber,
		ToNumber:          toPhone,
		Body:              body,
		Status:            models.MessageSent,
		ProviderMessageID: providerID,
	}
	if err := d.store.CreateMessage(msg); err != nil {
		if !errors.Is(err, storage.ErrDuplicateMessage) {
			return nil, err
		}
		// Already recorded; the send itself succeeded, report it as such.
	}

	if err := d.store.TouchConversation(conv.ID, body, time.Now()); err != nil {
		log.Printf("ERROR updating conversation %d after send: %v", conv.ID, err)
	}
	return msg, nil
}

// conversationFor finds the active conversation, creating the customer stub
// and conversation when the operator messages a number first.
func (d *Dispatcher) conversationFor(orgID uint, phone string) (*models.Conversation, error) {
	conv, err := d.store.GetActiveConversation(orgID, phone)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	customer, err := d.store.GetCustomerByPhone(orgID, phone)
	if errors.Is(err, storage.ErrNotFound) {
		customer = &models.Customer{OrganizationID: orgID, Name: phone, Phone: phone}
		if err := d.store.CreateCustomer(customer); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	conv = &models.Conversation{
		OrganizationID: orgID,
		CustomerID:     customer.ID,
		CustomerPhone:  phone,
		Status:         models.ConversationActive,
		IsBotActive:    true,
	}
	if err := d.store.CreateConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}
