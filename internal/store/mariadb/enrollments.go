package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glasslink/faceid/internal/identity"
	"github.com/glasslink/faceid/internal/store"
)

// EnrollmentStore implements store.Store on a MariaDB pool.
type EnrollmentStore struct {
	pool *Pool
}

// NewEnrollmentStore creates a store over an established pool. The caller is
// expected to have run EnsureSchema.
func NewEnrollmentStore(pool *Pool) *EnrollmentStore {
	return &EnrollmentStore{pool: pool}
}

// Upsert creates or replaces the record for rec.UserID.
func (s *EnrollmentStore) Upsert(ctx context.Context, rec identity.EnrollmentRecord) error {
	embedding, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}

	_, err = s.pool.db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, embedding, name, email, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			embedding = VALUES(embedding),
			name = VALUES(name),
			email = VALUES(email),
			updated_at = VALUES(updated_at)
	`, rec.UserID, string(embedding), rec.DisplayName, rec.ContactEmail, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting enrollment: %w", err)
	}
	return nil
}

// UpsertUnique scans the population under SELECT ... FOR UPDATE inside one
// transaction, so two racing registrations of the same face cannot both
// commit.
func (s *EnrollmentStore) UpsertUnique(ctx context.Context, rec identity.EnrollmentRecord, tolerance float64) error {
	embedding, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, embedding FROM enrollments WHERE user_id <> ? FOR UPDATE
	`, rec.UserID)
	if err != nil {
		return fmt.Errorf("locking population: %w", err)
	}
	duplicate, err := scanForDuplicate(rows, rec.Vector, tolerance)
	if err != nil {
		return err
	}
	if duplicate {
		return store.ErrDuplicateIdentity
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, embedding, name, email, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			embedding = VALUES(embedding),
			name = VALUES(name),
			email = VALUES(email),
			updated_at = VALUES(updated_at)
	`, rec.UserID, string(embedding), rec.DisplayName, rec.ContactEmail, rec.UpdatedAt); err != nil {
		return fmt.Errorf("upserting enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// scanForDuplicate walks the locked population looking for a vector within
// tolerance of probe. Closes rows.
func scanForDuplicate(rows *sql.Rows, probe identity.Vector, tolerance float64) (bool, error) {
	defer rows.Close()

	for rows.Next() {
		var userID, raw string
		if err := rows.Scan(&userID, &raw); err != nil {
			return false, fmt.Errorf("scanning enrollment: %w", err)
		}
		var vec identity.Vector
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return false, fmt.Errorf("decoding embedding for %s: %w", userID, err)
		}
		if identity.Distance(probe, vec) <= tolerance {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterating enrollments: %w", err)
	}
	return false, nil
}

// Get returns the record for userID.
func (s *EnrollmentStore) Get(ctx context.Context, userID string) (*identity.EnrollmentRecord, error) {
	var rec identity.EnrollmentRecord
	var raw string
	err := s.pool.db.QueryRowContext(ctx, `
		SELECT user_id, embedding, name, email, updated_at
		FROM enrollments
		WHERE user_id = ?
	`, userID).Scan(&rec.UserID, &raw, &rec.DisplayName, &rec.ContactEmail, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying enrollment: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &rec.Vector); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	return &rec, nil
}

// Delete removes the record for userID.
func (s *EnrollmentStore) Delete(ctx context.Context, userID string) error {
	result, err := s.pool.db.ExecContext(ctx, "DELETE FROM enrollments WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("deleting enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List returns the population ordered by user ID.
func (s *EnrollmentStore) List(ctx context.Context) ([]identity.EnrollmentRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT user_id, embedding, name, email, updated_at
		FROM enrollments
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}
	defer rows.Close()

	var recs []identity.EnrollmentRecord
	for rows.Next() {
		var rec identity.EnrollmentRecord
		var raw string
		if err := rows.Scan(&rec.UserID, &raw, &rec.DisplayName, &rec.ContactEmail, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Vector); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", rec.UserID, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enrollments: %w", err)
	}
	return recs, nil
}

// Count returns the population size.
func (s *EnrollmentStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM enrollments").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting enrollments: %w", err)
	}
	return count, nil
}
