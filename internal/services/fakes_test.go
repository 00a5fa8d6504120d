package services

import (
	"context"
	"sync"

	"github.com/mitienda-app/whatsapp-gateway/internal/bridge"
	"github.com/mitienda-app/whatsapp-gateway/internal/models"
)

// fakeBridge scripts the bridge API for manager/pipeline/dispatcher tests.
type fakeBridge struct {
	mu sync.Mutex

	// statuses is consumed by GetSession; the last entry repeats.
	statuses []string
	me       *bridge.MeInfo

	getErr     error
	getErrOnce bool

	qr      *bridge.QR
	qrErr   error
	qrCalls int

	sendID  string
	sendErr error

	logoutErr error

	calls []string
}

func (f *fakeBridge) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBridge) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBridge) CreateSession(ctx context.Context, name string) error {
	f.record("create")
	return nil
}

func (f *fakeBridge) StartSession(ctx context.Context, name string) error {
	f.record("start")
	return nil
}

func (f *fakeBridge) StopSession(ctx context.Context, name string) error {
	f.record("stop")
	return nil
}

func (f *fakeBridge) DeleteSession(ctx context.Context, name string) error {
	f.record("delete")
	return nil
}

func (f *fakeBridge) GetSession(ctx context.Context, name string) (*bridge.SessionInfo, error) {
	f.record("get")
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		err := f.getErr
		if f.getErrOnce {
			f.getErr = nil
		}
		return nil, err
	}

	status := models.SessionStopped
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	return &bridge.SessionInfo{Name: name, Status: status, Me: f.me}, nil
}

func (f *fakeBridge) Logout(ctx context.Context, name string) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeBridge) GetQR(ctx context.Context, name string) (*bridge.QR, error) {
	f.record("qr")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrCalls++
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	if f.qr != nil {
		return f.qr, nil
	}
	return &bridge.QR{Value: "qr-payload"}, nil
}

func (f *fakeBridge) SendText(ctx context.Context, session, chatID, text string) (string, error) {
	f.record("send:" + chatID + ":" + text)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.sendID, nil
}

func factoryFor(f *fakeBridge) BridgeFactory {
	return func(session *models.Session) BridgeClient { return f }
}

// fakeResponder scripts the AI responder.
type fakeResponder struct {
	mu    sync.Mutex
	reply string
	ok    bool
	err   error
	calls int
}

func (r *fakeResponder) Respond(ctx context.Context, orgID, conversationID uint, customerPhone, text string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.reply, r.ok, r.err
}
