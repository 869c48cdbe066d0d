package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sample is one labelled, normalized landmark vector.
type Sample struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	Label      string    `json:"label"`
	Handedness string    `json:"handedness,omitempty"`
	Vector     []float64 `json:"vector"`
	CreatedAt  time.Time `json:"created_at"`
}

// LabelCount is the number of samples stored for a label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SampleRepository provides CRUD operations for samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts a sample. An empty ID is replaced with a new UUID and a zero
// CreatedAt with the current time.
func (r *SampleRepository) Create(s *Sample) error {
	if s.Label == "" {
		return errors.New("sample label is required")
	}
	if len(s.Vector) == 0 {
		return errors.New("sample vector is empty")
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(s.Vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO samples (id, session_id, label, handedness, vector, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, nullString(s.SessionID), s.Label, s.Handedness, string(data), s.CreatedAt,
	)
	return err
}

// Get retrieves a sample by ID.
func (r *SampleRepository) Get(id string) (*Sample, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, label, handedness, vector, created_at FROM samples WHERE id = ?`, id)

	s, err := scanSample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns all samples in insertion order.
func (r *SampleRepository) List() ([]Sample, error) {
	return r.query(`SELECT id, session_id, label, handedness, vector, created_at
		FROM samples ORDER BY rowid`)
}

// ListByLabel returns the samples for one label in insertion order.
func (r *SampleRepository) ListByLabel(label string) ([]Sample, error) {
	return r.query(`SELECT id, session_id, label, handedness, vector, created_at
		FROM samples WHERE label = ? ORDER BY rowid`, label)
}

// ListBySession returns the samples collected in one session.
func (r *SampleRepository) ListBySession(sessionID string) ([]Sample, error) {
	return r.query(`SELECT id, session_id, label, handedness, vector, created_at
		FROM samples WHERE session_id = ? ORDER BY rowid`, sessionID)
}

// CountByLabel returns per-label sample counts ordered by label.
func (r *SampleRepository) CountByLabel() ([]LabelCount, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM samples GROUP BY label ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []LabelCount
	for rows.Next() {
		var c LabelCount
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DeleteByLabel removes every sample with the label and returns how many were removed.
func (r *SampleRepository) DeleteByLabel(label string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM samples WHERE label = ?`, label)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SampleRepository) query(q string, args ...any) ([]Sample, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(row scanner) (*Sample, error) {
	var (
		s         Sample
		sessionID sql.NullString
		vector    string
	)
	if err := row.Scan(&s.ID, &sessionID, &s.Label, &s.Handedness, &vector, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.SessionID = sessionID.String
	if err := json.Unmarshal([]byte(vector), &s.Vector); err != nil {
		return nil, fmt.Errorf("decode vector of sample %s: %w", s.ID, err)
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
