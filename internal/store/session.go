package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one collection run for a single label.
type Session struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Target    int       `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRepository provides CRUD operations for collection sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create starts a new session for label.
func (r *SessionRepository) Create(label string, target int) (*Session, error) {
	if label == "" {
		return nil, errors.New("session label is required")
	}

	s := &Session{
		ID:        uuid.New().String(),
		Label:     label,
		Target:    target,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, label, target, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Label, s.Target, s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	var s Session
	err := r.db.QueryRow(
		`SELECT id, label, target, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Label, &s.Target, &s.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns all sessions, newest first.
func (r *SessionRepository) List() ([]Session, error) {
	rows, err := r.db.Query(`SELECT id, label, target, created_at FROM sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Label, &s.Target, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session and, through the foreign key, its samples.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
