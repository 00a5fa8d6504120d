package jobs

import (
	"context"
	"log"
	"time"

	"github.com/mitienda-app/whatsapp-gateway/internal/services"
	"github.com/mitienda-app/whatsapp-gateway/internal/storage"
)

// SessionSyncJob periodically refreshes every known session's status so the
// connected flag stays truthful even when no operator browser is polling.
// It rides the same self-healing path the status endpoint uses: a FAILED or
// STOPPED session gets restarted on sight.
type SessionSyncJob struct {
	store    storage.Store
	manager  *services.SessionManager
	interval time.Duration
	stop     chan struct{}
}

// NewSessionSyncJob creates the background reconciliation job
func NewSessionSyncJob(store storage.Store, manager *services.SessionManager, interval time.Duration) *SessionSyncJob {
	return &SessionSyncJob{
		store:    store,
		manager:  manager,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the sync loop in the background
func (j *SessionSyncJob) Start() {
	go j.run()
	log.Printf("session sync job started (every %s)", j.interval)
}

// Stop terminates the sync loop
func (j *SessionSyncJob) Stop() {
	close(j.stop)
}

func (j *SessionSyncJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.syncAll()
		case <-j.stop:
			return
		}
	}
}

func (j *SessionSyncJob) syncAll() {
	sessions, err := j.store.GetAllSessions()
	if err != nil {
		log.Printf("ERROR listing sessions for sync: %v", err)
		return
	}

	for _, session := range sessions {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := j.manager.GetStatus(ctx, session.OrganizationID); err != nil {
			log.Printf("session sync: org %d: %v", session.OrganizationID, err)
		}
		cancel()
	}
}
