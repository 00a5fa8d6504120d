package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/mitienda-app/whatsapp-gateway/internal/bridge"
	"github.com/mitienda-app/whatsapp-gateway/internal/models"
	"github.com/mitienda-app/whatsapp-gateway/internal/storage"
)

// Normalized external-facing statuses. The UI only ever sees these three;
// STARTING/FAILED/STOPPED and anything unknown all normalize to pending.
const (
	StatusPending = "pending"
	StatusScanQR  = "scan_qr"
	StatusWorking = "working"
)

// qrTTL is the validity window of a cached pairing code. After this the
// bridge must be asked for a fresh one, not the cache.
const qrTTL = 60 * time.Second

// settleDelay is the wait between sequential bridge calls in the forced
// disconnect sequence; the bridge is eventually consistent after
// stop/start operations.
const settleDelay = 2 * time.Second

// BridgeClient is the subset of the bridge API the manager and dispatcher
// drive. *bridge.Client satisfies it.
type BridgeClient interface {
	CreateSession(ctx context.Context, name string) error
	StartSession(ctx context.Context, name string) error
	StopSession(ctx context.Context, name string) error
	DeleteSession(ctx context.Context, name string) error
	GetSession(ctx context.Context, name string) (*bridge.SessionInfo, error)
	Logout(ctx context.Context, name string) error
	GetQR(ctx context.Context, name string) (*bridge.QR, error)
	SendText(ctx context.Context, session, chatID, text string) (string, error)
}

// BridgeFactory builds a client for one tenant's session, applying
// per-tenant base URL / API key overrides. Keeps credentials out of any
// process-wide cache.
type BridgeFactory func(session *models.Session) BridgeClient

// SessionState is what callers (the status endpoint, the UI poller) see.
type SessionState struct {
	Status      string     `json:"status"`
	RawStatus   string     `json:"raw_status"`
	SessionName string     `json:"session_name"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	QR          *bridge.QR `json:"qr,omitempty"`
}

type cachedQR struct {
	qr        *bridge.QR
	fetchedAt time.Time
}

// SessionManager owns the per-organization pairing state machine. All
// mutating flows for one organization are serialized through a per-org
// mutex so interleaved operator actions cannot produce inconsistent
// bridge calls.
type SessionManager struct {
	store  storage.Store
	bridge BridgeFactory

	locksMu sync.Mutex
	locks   map[uint]*sync.Mutex

	qrMu    sync.Mutex
	qrCache map[uint]cachedQR

	// settle overrides settleDelay; tests set it to zero.
	settle time.Duration
}

// NewSessionManager creates a session manager
func NewSessionManager(store storage.Store, factory BridgeFactory) *SessionManager {
	return &SessionManager{
		store:   store,
		bridge:  factory,
		locks:   make(map[uint]*sync.Mutex),
		qrCache: make(map[uint]cachedQR),
		settle:  settleDelay,
	}
}

// SetSettleDelay overrides the wait between sequential bridge calls. Tests
// set it to zero.
func (m *SessionManager) SetSettleDelay(d time.Duration) {
	m.settle = d
}

func (m *SessionManager) orgLock(orgID uint) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	if _, ok := m.locks[orgID]; !ok {
		m.locks[orgID] = &sync.Mutex{}
	}
	return m.locks[orgID]
}

// ensureSession returns the organization's session record, allocating the
// stable session name on first use. Querying twice never allocates twice:
// the unique index on organization_id backs the race.
func (m *SessionManager) ensureSession(orgID uint) (*models.Session, error) {
	session, err := m.store.GetSessionByOrg(orgID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	session = &models.Session{
		OrganizationID: orgID,
		SessionName:    fmt.Sprintf("org-%d", orgID),
		Status:         models.SessionUninitialized,
	}
	if err := m.store.CreateSession(session); err != nil {
		// Lost the race to a concurrent first query; use the winner's row.
		if existing, lookupErr := m.store.GetSessionByOrg(orgID); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return session, nil
}

// GetStatus is the idempotent read the UI polls. It ensures a session
// exists, makes one bridge round trip, self-heals FAILED/STOPPED back into
// STARTING, and returns the normalized state. On bridge failure the stored
// state is left untouched and the error is returned for the handler to map.
func (m *SessionManager) GetStatus(ctx context.Context, orgID uint) (*SessionState, error) {
	session, err := m.ensureSession(orgID)
	if err != nil {
		return nil, err
	}
	client := m.bridge(session)

	info, err := client.GetSession(ctx, session.SessionName)
	if err != nil {
		var bridgeErr *bridge.Error
		if errors.As(err, &bridgeErr) && bridgeErr.StatusCode == http.StatusNotFound {
			// Unknown upstream: first contact, or the session was purged.
			return m.startFresh(ctx, client, session)
		}
		return nil, err
	}

	return m.applyBridgeStatus(ctx, client, session, info)
}

// startFresh registers and starts the session, entering STARTING.
func (m *SessionManager) startFresh(ctx context.Context, client BridgeClient, session *models.Session) (*SessionState, error) {
	if err := client.CreateSession(ctx, session.SessionName); err != nil && !errors.Is(err, bridge.ErrSessionExists) {
		return nil, err
	}
	if err := client.StartSession(ctx, session.SessionName); err != nil {
		return nil, err
	}
	m.transition(session, models.SessionStarting)
	return m.state(session, nil), nil
}

// applyBridgeStatus folds one bridge status report into the state machine.
func (m *SessionManager) applyBridgeStatus(ctx context.Context, client BridgeClient, session *models.Session, info *bridge.SessionInfo) (*SessionState, error) {
	switch info.Status {
	case models.SessionWorking:
		if info.Me != nil {
			session.OwnPhoneNumber = bridge.PhoneFromChatID(info.Me.ID)
		}
		session.Connected = true
		m.transition(session, models.SessionWorking)
		m.invalidateQR(session.OrganizationID)
		return m.state(session, nil), nil

	case models.SessionScanQR:
		m.transition(session, models.SessionScanQR)
		qr, err := m.pairingCode(ctx, client, session)
		if err != nil {
			// Status is still authoritative; surface the state without the
			// code and let the next poll retry the fetch.
			log.Printf("ERROR fetching QR for org %d: %v", session.OrganizationID, err)
			return m.state(session, nil), nil
		}
		return m.state(session, qr), nil

	case models.SessionFailed, models.SessionStopped:
		// Never terminal from the caller's perspective; restart on sight.
		if err := client.StartSession(ctx, session.SessionName); err != nil {
			return nil, err
		}
		m.transition(session, models.SessionStarting)
		return m.state(session, nil), nil

	default:
		m.transition(session, models.SessionStarting)
		return m.state(session, nil), nil
	}
}

// Reconnect is the explicit user-triggered connect/retry action.
func (m *SessionManager) Reconnect(ctx context.Context, orgID uint) (*SessionState, error) {
	lock := m.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.ensureSession(orgID)
	if err != nil {
		return nil, err
	}
	client := m.bridge(session)

	if err := client.CreateSession(ctx, session.SessionName); err != nil && !errors.Is(err, bridge.ErrSessionExists) {
		return nil, err
	}
	if err := client.StartSession(ctx, session.SessionName); err != nil {
		return nil, err
	}
	m.transition(session, models.SessionStarting)
	m.sleep()

	info, err := client.GetSession(ctx, session.SessionName)
	if err != nil {
		// Start succeeded; report STARTING rather than failing the action.
		return m.state(session, nil), nil
	}
	return m.applyBridgeStatus(ctx, client, session, info)
}

// Logout de-authenticates the tenant's session. The logout is confirmed by
// re-querying status; if the bridge still reports WORKING the manager
// escalates to stop, delete, recreate, re-entering STARTING.
func (m *SessionManager) Logout(ctx context.Context, orgID uint) (*SessionState, error) {
	lock := m.orgLock(orgID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.ensureSession(orgID)
	if err != nil {
		return nil, err
	}
	client := m.bridge(session)

	err = client.Logout(ctx, session.SessionName)
	if errors.Is(err, bridge.ErrUnavailable) {
		// Ambiguous failure: take no destructive action, leave state alone.
		return nil, err
	}
	if err != nil {
		// Non-transport failure; the status re-query below decides.
		log.Printf("logout call failed for org %d: %v", orgID, err)
	}
	m.sleep()

	info, err := client.GetSession(ctx, session.SessionName)
	if err != nil {
		return nil, err
	}

	if info.Status == models.SessionWorking {
		// Logout did not take; force the full teardown.
		log.Printf("org %d still WORKING after logout, forcing stop/delete/recreate", orgID)
		if err := m.forceRecreate(ctx, client, session); err != nil {
			return nil, err
		}
		return m.state(session, nil), nil
	}

	session.OwnPhoneNumber = ""
	session.Connected = false
	m.transition(session, models.SessionUninitialized)
	m.invalidateQR(orgID)
	return m.state(session, nil), nil
}

// ChangeNumber tears the pairing down and brings the session back up to the
// point where a new QR can be scanned.
func (m *SessionManager) ChangeNumber(ctx context.Context, orgID uint) (*SessionState, error) {
	if _, err := m.Logout(ctx, orgID); err != nil {
		return nil, err
	}
	return m.Reconnect(ctx, orgID)
}

// forceRecreate is the escalation path: stop, delete, recreate, start.
func (m *SessionManager) forceRecreate(ctx context.Context, client BridgeClient, session *models.Session) error {
	if err := client.StopSession(ctx, session.SessionName); err != nil {
		return err
	}
	m.sleep()
	if err := client.DeleteSession(ctx, session.SessionName); err != nil {
		return err
	}
	m.sleep()
	if err := client.CreateSession(ctx, session.SessionName); err != nil && !errors.Is(err, bridge.ErrSessionExists) {
		return err
	}
	if err := client.StartSession(ctx, session.SessionName); err != nil {
		return err
	}
	session.OwnPhoneNumber = ""
	session.Connected = false
	m.transition(session, models.SessionStarting)
	m.invalidateQR(session.OrganizationID)
	return nil
}

// pairingCode returns the cached QR while it is still fresh, otherwise
// fetches a new one from the bridge.
func (m *SessionManager) pairingCode(ctx context.Context, client BridgeClient, session *models.Session) (*bridge.QR, error) {
	m.qrMu.Lock()
	cached, ok := m.qrCache[session.OrganizationID]
	m.qrMu.Unlock()
	if ok && time.Since(cached.fetchedAt) < qrTTL {
		return cached.qr, nil
	}

	qr, err := client.GetQR(ctx, session.SessionName)
	if err != nil {
		return nil, err
	}
	m.qrMu.Lock()
	m.qrCache[session.OrganizationID] = cachedQR{qr: qr, fetchedAt: time.Now()}
	m.qrMu.Unlock()
	return qr, nil
}

func (m *SessionManager) invalidateQR(orgID uint) {
	m.qrMu.Lock()
	delete(m.qrCache, orgID)
	m.qrMu.Unlock()
}

// transition persists a status change. Persistence failures are logged, not
// propagated: the bridge remains the source of truth on the next query.
func (m *SessionManager) transition(session *models.Session, status string) {
	session.Status = status
	if status != models.SessionWorking {
		session.Connected = false
	}
	if err := m.store.UpdateSession(session); err != nil {
		log.Printf("ERROR persisting session state for org %d: %v", session.OrganizationID, err)
	}
}

func (m *SessionManager) state(session *models.Session, qr *bridge.QR) *SessionState {
	return &SessionState{
		Status:      NormalizeStatus(session.Status),
		RawStatus:   session.Status,
		SessionName: session.SessionName,
		PhoneNumber: session.OwnPhoneNumber,
		QR:          qr,
	}
}

func (m *SessionManager) sleep() {
	if m.settle > 0 {
		time.Sleep(m.settle)
	}
}

// NormalizeStatus maps bridge-specific states onto the three the UI knows.
func NormalizeStatus(raw string) string {
	switch raw {
	case models.SessionWorking:
		return StatusWorking
	case models.SessionScanQR:
		return StatusScanQR
	default:
		return StatusPending
	}
}
