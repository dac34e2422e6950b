package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// SessionRepository implements [SessionStore] on SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection.
//
// The sessions table must exist; see [shared.RunMigrations].
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session with a generated ID.
func (r *SessionRepository) Create(session *models.Session) error {
	session.SetID(shared.GenerateID())
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tokens, _ := session.Tokens()
	query := `
		INSERT INTO sessions (id, pending_auth_state, access_token, refresh_token, access_token_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		session.ID(), session.PendingAuthState(), tokens.AccessToken, tokens.RefreshToken,
		nullTime(tokens.Expiry), session.CreatedAt().UTC(), session.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, pending_auth_state, access_token, refresh_token, access_token_expiry, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`

	session, err := scanSession(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return session, nil
}

// Update writes every field of an existing session.
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tokens, _ := session.Tokens()
	query := `
		UPDATE sessions
		SET pending_auth_state = ?, access_token = ?, refresh_token = ?, access_token_expiry = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		session.PendingAuthState(), tokens.AccessToken, tokens.RefreshToken,
		nullTime(tokens.Expiry), session.UpdatedAt().UTC(), session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}

	return nil
}

// Touch sets updated_at for an existing session.
func (r *SessionRepository) Touch(id string, at time.Time) error {
	result, err := r.db.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}

// Delete removes a session. Deleting an unknown ID is not an error.
func (r *SessionRepository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List retrieves sessions, optionally filtered by {"authenticated": bool}.
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	want, filter, err := authenticatedCriterion(criteria)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, pending_auth_state, access_token, refresh_token, access_token_expiry, created_at, updated_at
		FROM sessions
	`
	if filter {
		if want {
			query += " WHERE access_token != ''"
		} else {
			query += " WHERE access_token = ''"
		}
	}
	query += " ORDER BY created_at"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// PurgeExpired deletes sessions last updated before the cutoff.
func (r *SessionRepository) PurgeExpired(before time.Time) (int, error) {
	result, err := r.db.Exec("DELETE FROM sessions WHERE updated_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		id        string
		pending   string
		access    string
		refresh   string
		expiry    sql.NullTime
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &pending, &access, &refresh, &expiry, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	tokens := models.TokenSet{AccessToken: access, RefreshToken: refresh}
	if expiry.Valid {
		tokens.Expiry = expiry.Time
	}

	return models.RestoreSession(id, pending, tokens, createdAt, updatedAt), nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
