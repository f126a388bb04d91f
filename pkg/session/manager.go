package session

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/dotsetgreg/similobot/pkg/logger"
)

const janitorTickInterval = time.Minute

// Manager hands out per-table Session objects, backed by the store when one
// is configured. It never shares a Session between two IDs.
type Manager struct {
	mu       sync.Mutex
	live     map[string]*Session
	store    *Store
	maxTurns int
}

func NewManager(store *Store, maxTurns int) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Manager{
		live:     make(map[string]*Session),
		store:    store,
		maxTurns: maxTurns,
	}
}

// Get returns the session for id, loading it from the store or creating it.
// An empty id gets a fresh uuid session.
func (m *Manager) Get(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.live[id]; ok {
		return sess
	}

	if m.store != nil {
		sess, found, err := m.store.LoadSession(id, m.maxTurns)
		if err != nil {
			logger.WarnCF("session", "Failed to load session, starting fresh", map[string]any{
				"session_id": id,
				"error":      err.Error(),
			})
		} else if found {
			m.live[id] = sess
			return sess
		}
	}

	sess := New(id, m.maxTurns)
	m.live[id] = sess
	return sess
}

// Persist writes the session snapshot through to the store.
func (m *Manager) Persist(sess *Session) {
	if m.store == nil || sess == nil {
		return
	}
	if err := m.store.SaveSession(sess); err != nil {
		logger.WarnCF("session", "Failed to persist session", map[string]any{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
}

// RecordTurn persists the utterances and outcome record of one turn.
func (m *Manager) RecordTurn(sess *Session, userMessage, reply string, rec TurnRecord) {
	if m.store == nil || sess == nil {
		return
	}
	rec.SessionID = sess.ID
	if err := m.store.SaveTurn(sess.ID, "user", userMessage); err != nil {
		logger.WarnCF("session", "Failed to save user turn", map[string]any{"session_id": sess.ID, "error": err.Error()})
	}
	if err := m.store.SaveTurn(sess.ID, "assistant", reply); err != nil {
		logger.WarnCF("session", "Failed to save assistant turn", map[string]any{"session_id": sess.ID, "error": err.Error()})
	}
	if err := m.store.RecordTurn(rec); err != nil {
		logger.WarnCF("session", "Failed to record turn outcome", map[string]any{"session_id": sess.ID, "error": err.Error()})
	}
}

// LiveCount reports how many sessions are resident in memory.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// StartJanitor expires idle sessions on the given cron schedule until ctx
// is done. Sessions idle for longer than ttl are dropped from memory and
// deleted from the store.
func (m *Manager) StartJanitor(ctx context.Context, schedule string, ttl time.Duration) {
	if schedule == "" || ttl <= 0 {
		return
	}
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		logger.WarnCF("session", "Invalid janitor schedule, janitor disabled", map[string]any{"schedule": schedule})
		return
	}

	go func() {
		ticker := time.NewTicker(janitorTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				due, err := gron.IsDue(schedule, now)
				if err != nil || !due {
					continue
				}
				m.cleanup(ttl)
			}
		}
	}()
}

func (m *Manager) cleanup(ttl time.Duration) {
	cutoff := time.Now().UTC().Add(-ttl)

	m.mu.Lock()
	for id, sess := range m.live {
		if sess.UpdatedAt().Before(cutoff) {
			delete(m.live, id)
		}
	}
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	removed, err := m.store.DeleteIdleBefore(cutoff)
	if err != nil {
		logger.WarnCF("session", "Janitor cleanup failed", map[string]any{"error": err.Error()})
		return
	}
	if removed > 0 {
		logger.InfoCF("session", "Expired idle sessions", map[string]any{"removed": removed})
	}
}
