package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/glasslink/faceid/internal/identity"
	"github.com/glasslink/faceid/internal/store"
)

// EnrollmentStore implements store.Store on a PostgreSQL pool.
type EnrollmentStore struct {
	pool *Pool
}

// NewEnrollmentStore creates a store over an established pool. The caller is
// expected to have run migrations.
func NewEnrollmentStore(pool *Pool) *EnrollmentStore {
	return &EnrollmentStore{pool: pool}
}

// advisoryLockKey serializes uniqueness-checking writes across connections.
// A single key is enough: registrations are rare compared to recognitions.
const advisoryLockKey int64 = 0x6661636569640a // "faceid"

// Upsert creates or replaces the record for rec.UserID.
func (s *EnrollmentStore) Upsert(ctx context.Context, rec identity.EnrollmentRecord) error {
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, embedding, name, email, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
	`, rec.UserID, pgvector.NewVector(rec.Vector), rec.DisplayName, rec.ContactEmail, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting enrollment: %w", err)
	}
	return nil
}

// UpsertUnique performs the nearest-neighbor check and the write in one
// transaction under an advisory lock, so two racing registrations of the
// same face cannot both commit.
func (s *EnrollmentStore) UpsertUnique(ctx context.Context, rec identity.EnrollmentRecord, tolerance float64) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire enrollment lock: %w", err)
	}

	probe := pgvector.NewVector(rec.Vector)
	var distance float64
	err = tx.QueryRowContext(ctx, `
		SELECT embedding <-> $1
		FROM enrollments
		WHERE user_id <> $2
		ORDER BY embedding <-> $1
		LIMIT 1
	`, probe, rec.UserID).Scan(&distance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// empty population
	case err != nil:
		return fmt.Errorf("nearest-neighbor check: %w", err)
	case distance <= tolerance:
		return store.ErrDuplicateIdentity
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, embedding, name, email, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
	`, rec.UserID, probe, rec.DisplayName, rec.ContactEmail, rec.UpdatedAt); err != nil {
		return fmt.Errorf("upserting enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Get returns the record for userID.
func (s *EnrollmentStore) Get(ctx context.Context, userID string) (*identity.EnrollmentRecord, error) {
	var rec identity.EnrollmentRecord
	var embedding pgvector.Vector
	err := s.pool.db.QueryRowContext(ctx, `
		SELECT user_id, embedding, name, email, updated_at
		FROM enrollments
		WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &embedding, &rec.DisplayName, &rec.ContactEmail, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying enrollment: %w", err)
	}

	rec.Vector = embedding.Slice()
	return &rec, nil
}

// Delete removes the record for userID.
func (s *EnrollmentStore) Delete(ctx context.Context, userID string) error {
	result, err := s.pool.db.ExecContext(ctx, "DELETE FROM enrollments WHERE user_id = $1", userID)
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
		var embedding pgvector.Vector
		if err := rows.Scan(&rec.UserID, &embedding, &rec.DisplayName, &rec.ContactEmail, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		rec.Vector = embedding.Slice()
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
