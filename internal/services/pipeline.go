package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mitienda-app/whatsapp-gateway/internal/bridge"
	"github.com/mitienda-app/whatsapp-gateway/internal/models"
	"github.com/mitienda-app/whatsapp-gateway/internal/storage"
)

// Pipeline ingests webhook events from the bridge: classify, filter,
// resolve the tenant, persist, then hand off to the responder and
// dispatcher. It is stateless and safe for unbounded parallel invocation;
// correctness under redelivery rests on the store's unique constraint on
// the provider message id, not on in-process locks.
type Pipeline struct {
	store      storage.Store
	responder  Responder
	dispatcher *Dispatcher
}

// NewPipeline creates the webhook ingestion pipeline
func NewPipeline(store storage.Store, responder Responder, dispatcher *Dispatcher) *Pipeline {
	return &Pipeline{store: store, responder: responder, dispatcher: dispatcher}
}

// Process handles one webhook delivery. The returned error is for the
// handler's log only; the webhook boundary acknowledges success regardless,
// because the bridge retries non-success and dedup makes retries wasteful
// rather than harmful.
func (p *Pipeline) Process(ctx context.Context, body []byte) error {
	event, err := bridge.ParseEvent(body)
	if err != nil {
		return err
	}

	switch event.Kind {
	case bridge.EventMessage:
		return p.processMessage(ctx, event)
	case bridge.EventSessionStatus:
		return p.processSessionStatus(event)
	default:
		return nil
	}
}

func (p *Pipeline) processMessage(ctx context.Context, event *bridge.Event) error {
	msg := event.Message

	// Filters, in order, short-circuiting on the first match. All of these
	// are ignorable: dropped without error.
	if msg.FromMe {
		return nil
	}
	if bridge.IsBroadcast(msg.ChatID) {
		return nil
	}
	if bridge.IsGroupChat(msg.ChatID) {
		return nil
	}
	if !bridge.IsDirectChat(msg.ChatID) {
		return nil
	}

	session, err := p.store.GetSessionByName(event.Session)
	if err != nil {
		// A webhook for a session we do not know means a tenant is silently
		// not receiving bot replies; loud log, quiet ACK.
		return fmt.Errorf("unresolvable session %q: %w", event.Session, err)
	}

	phone := bridge.PhoneFromChatID(msg.ChatID)
	if session.OwnPhoneNumber != "" && phone == session.OwnPhoneNumber {
		// Reflection/loop guard.
		return nil
	}

	conv, err := p.conversationFor(session.OrganizationID, phone)
	if err != nil {
		return fmt.Errorf("resolving conversation for org %d: %w", session.OrganizationID, err)
	}

	providerID := msg.ID
	if providerID == "" {
		// No id in any known payload location. Mint one so the unique index
		// on provider_message_id cannot collide unrelated id-less messages;
		// such a message cannot be deduplicated on redelivery.
		providerID = uuid.NewString()
		log.Printf("inbound message from %s has no provider id, minted %s", msg.ChatID, providerID)
	}

	record := &models.Message{
		ConversationID:    conv.ID,
		OrganizationID:    session.OrganizationID,
		Direction:         models.DirectionInbound,
		FromNumber:        phone,
		ToNumber:          session.OwnPhoneNumber,
		Body:              msg.Body,
		MediaURL:          msg.MediaURL,
		MediaType:         msg.MediaType,
		Status:            models.MessageReceived,
		ProviderMessageID: providerID,
	}
	if err := p.store.CreateMessage(record); err != nil {
		if errors.Is(err, storage.ErrDuplicateMessage) {
			// Redelivery; already processed.
			return nil
		}
		return fmt.Errorf("persisting message %q: %w", providerID, err)
	}

	if err := p.store.TouchConversation(conv.ID, msg.Body, time.Now()); err != nil {
		// Best effort; the messages table is the source of truth.
		log.Printf("ERROR updating conversation %d aggregates: %v", conv.ID, err)
	}

	if !conv.IsBotActive {
		return nil
	}

	reply, ok, err := p.responder.Respond(ctx, session.OrganizationID, conv.ID, phone, msg.Body)
	if err != nil {
		log.Printf("responder failed for conversation %d: %v", conv.ID, err)
		return nil
	}
	if !ok {
		return nil
	}

	if _, err := p.dispatcher.Send(ctx, session.OrganizationID, phone, reply); err != nil {
		log.Printf("ERROR sending reply for conversation %d: %v", conv.ID, err)
	}
	return nil
}

// processSessionStatus flips the connected flag on the tenant's session;
// it is independent of the message path.
func (p *Pipeline) processSessionStatus(event *bridge.Event) error {
	session, err := p.store.GetSessionByName(event.Session)
	if err != nil {
		return fmt.Errorf("unresolvable session %q: %w", event.Session, err)
	}
	session.Status = event.Status.Status
	session.Connected = event.Status.Status == models.SessionWorking
	if err := p.store.UpdateSession(session); err != nil {
		return fmt.Errorf("updating session %q: %w", event.Session, err)
	}
	return nil
}

// conversationFor finds the active conversation for the phone, creating the
// customer stub and conversation on first contact.
func (p *Pipeline) conversationFor(orgID uint, phone string) (*models.Conversation, error) {
	conv, err := p.store.GetActiveConversation(orgID, phone)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	customer, err := p.store.GetCustomerByPhone(orgID, phone)
	if errors.Is(err, storage.ErrNotFound) {
		customer = &models.Customer{OrganizationID: orgID, Name: phone, Phone: phone}
		if err := p.store.CreateCustomer(customer); err != nil {
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
	if err := p.store.CreateConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}
