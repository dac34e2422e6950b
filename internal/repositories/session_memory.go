package repositories

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// MemorySessionRepository is an in-memory implementation of [SessionStore].
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemorySessionRepository creates an empty [MemorySessionRepository].
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]models.Session)}
}

// Create assigns an ID to the session and stores a copy.
func (r *MemorySessionRepository) Create(session *models.Session) error {
	session.SetID(shared.GenerateID())
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID()] = *session
	return nil
}

// Get returns a copy of the session with the given ID.
func (r *MemorySessionRepository) Get(id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return &session, nil
}

// Update replaces the stored copy of an existing session.
func (r *MemorySessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID()]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}
	r.sessions[session.ID()] = *session
	return nil
}

// Touch sets the stored session's UpdatedAt.
func (r *MemorySessionRepository) Touch(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	session.SetUpdatedAt(at)
	r.sessions[id] = session
	return nil
}

// Delete removes a session. Deleting an unknown ID is not an error.
func (r *MemorySessionRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// List returns copies of all sessions, optionally filtered by {"authenticated": bool}.
func (r *MemorySessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	want, filter, err := authenticatedCriterion(criteria)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*models.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if _, ok := s.Tokens(); filter && ok != want {
			continue
		}
		session := s
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

// PurgeExpired deletes sessions last updated before the cutoff.
func (r *MemorySessionRepository) PurgeExpired(before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, s := range r.sessions {
		if s.UpdatedAt().Before(before) {
			delete(r.sessions, id)
			purged++
		}
	}
	return purged, nil
}
