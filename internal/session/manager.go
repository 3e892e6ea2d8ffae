// Package session owns the authoritative game session: its lifecycle state
// machine, the single-active-session invariant, and best-effort persistence.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanquest/orchestrator/internal/errors"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/internal/store"
)

// Manager holds the one current session. All mutations, including scans
// applied through Mutate, serialize on the manager's lock so a transition and
// a mid-flight scan can never interleave.
type Manager struct {
	log   logger.Logger
	store store.SessionStore
	bus   *events.Bus

	mu      sync.Mutex
	current *models.Session
}

// New creates a session manager. The store may be nil in tests; persistence
// is skipped entirely then.
func New(log logger.Logger, st store.SessionStore, bus *events.Bus) *Manager {
	return &Manager{log: log, store: st, bus: bus}
}

// Restore loads the last persisted session on startup. A session that was not
// ended resumes as the current session (crash recovery); an ended record is
// left in the store untouched.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	s, err := m.store.GetLatest(ctx)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if s.Status == models.SessionEnded {
		m.log.Debug("Last persisted session already ended, starting fresh", "session_id", s.ID)
		return nil
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.log.Info("Restored session from store", "session_id", s.ID, "name", s.Name, "status", s.Status)
	return nil
}

// Create starts a new session. An existing active or paused session is ended
// first (implicit supersession, not an error), keeping the single-active
// invariant.
func (m *Manager) Create(ctx context.Context, name string, teams []string) (*models.Session, error) {
	if name == "" {
		return nil, errors.Validation("session name is required")
	}
	if len(teams) == 0 {
		return nil, errors.Validation("at least one team is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Status != models.SessionEnded {
		now := time.Now()
		m.current.Status = models.SessionEnded
		m.current.EndTime = &now
		m.persist(ctx, m.current)
		m.log.Info("Superseding session", "session_id", m.current.ID, "name", m.current.Name)
		m.bus.Publish(events.SessionUpdate, m.current.Clone())
	}

	scores := make(map[string]*models.TeamScore, len(teams))
	for _, teamID := range teams {
		scores[teamID] = &models.TeamScore{TeamID: teamID, CompletedGroups: []string{}, LastUpdate: time.Now()}
	}

	s := &models.Session{
		ID:           uuid.NewString(),
		Name:         name,
		Teams:        append([]string(nil), teams...),
		Status:       models.SessionActive,
		StartTime:    time.Now(),
		Transactions: []models.Transaction{},
		Scores:       scores,
		Metadata: models.SessionMetadata{
			ScannedTokensByDevice: make(map[string][]string),
		},
	}
	m.current = s
	m.persist(ctx, s)

	m.log.Info("Session created", "session_id", s.ID, "name", name, "teams", len(teams))
	m.bus.Publish(events.SessionUpdate, s.Clone())
	return s.Clone(), nil
}

// Pause transitions an active session to paused
func (m *Manager) Pause(ctx context.Context) error {
	return m.transition(ctx, models.SessionActive, models.SessionPaused)
}

// Resume transitions a paused session back to active
func (m *Manager) Resume(ctx context.Context) error {
	return m.transition(ctx, models.SessionPaused, models.SessionActive)
}

// End terminates an active or paused session, sets the end time, and freezes
// the transaction log.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.Status == models.SessionEnded {
		return errors.InvalidTransition("no active or paused session to end")
	}

	now := time.Now()
	m.current.Status = models.SessionEnded
	m.current.EndTime = &now
	m.persist(ctx, m.current)

	m.log.Info("Session ended", "session_id", m.current.ID, "transactions", len(m.current.Transactions))
	m.bus.Publish(events.SessionUpdate, m.current.Clone())
	return nil
}

func (m *Manager) transition(ctx context.Context, from, to models.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return errors.InvalidTransitionf("no session to move to %s", to)
	}
	if m.current.Status != from {
		return errors.InvalidTransitionf("cannot move session from %s to %s", m.current.Status, to)
	}

	m.current.Status = to
	m.persist(ctx, m.current)

	m.log.Info("Session status changed", "session_id", m.current.ID, "status", to)
	m.bus.Publish(events.SessionUpdate, m.current.Clone())
	return nil
}

// Current returns a point-in-time snapshot of the current session: the
// active or paused session, the most recently ended one, or nil if no
// session ever existed.
func (m *Manager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Mutate runs fn against the live session under the manager's lock and
// persists the result when fn succeeds. fn must not retain the session
// pointer past its return.
func (m *Manager) Mutate(ctx context.Context, fn func(*models.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := fn(m.current); err != nil {
		return err
	}
	if m.current != nil {
		m.persist(ctx, m.current)
	}
	return nil
}

// persist is best-effort: failures are logged and in-memory state stays
// authoritative. Callers must hold m.mu.
func (m *Manager) persist(ctx context.Context, s *models.Session) {
	if m.store == nil || s == nil {
		return
	}
	if err := m.store.Put(ctx, s); err != nil {
		m.log.Warn("Failed to persist session, continuing from memory", "session_id", s.ID, "error", err)
	}
}
