// Package store defines the identity store: the durable mapping from user
// ID to canonical vector plus metadata, searched as the population during
// matching. Implementations exist for a JSON file, PostgreSQL (pgvector)
// and MariaDB.
package store

import (
	"context"
	"errors"

	"github.com/glasslink/faceid/internal/identity"
)

var (
	// ErrNotFound is returned when no enrollment exists for a user ID.
	ErrNotFound = errors.New("enrollment not found")

	// ErrDuplicateIdentity is returned by UpsertUnique when another account
	// already holds a vector within tolerance of the new one. It carries no
	// detail about the matched identity.
	ErrDuplicateIdentity = errors.New("face already enrolled under another identity")
)

// Store is the durable population of enrollment records. Exactly one record
// exists per user ID; writes are upserts, never appends.
type Store interface {
	// Upsert creates or wholesale-replaces the record for rec.UserID.
	Upsert(ctx context.Context, rec identity.EnrollmentRecord) error

	// UpsertUnique behaves like Upsert but additionally enforces, atomically
	// with the write, that no other user's vector lies within tolerance of
	// rec.Vector. This is the storage-layer safeguard behind the best-effort
	// duplicate guard: two racing registrations of the same face cannot both
	// commit. Returns ErrDuplicateIdentity on conflict.
	UpsertUnique(ctx context.Context, rec identity.EnrollmentRecord, tolerance float64) error

	// Get returns the record for userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*identity.EnrollmentRecord, error)

	// Delete removes the record for userID, or returns ErrNotFound.
	Delete(ctx context.Context, userID string) error

	// List returns a snapshot of the full population in stable order.
	List(ctx context.Context) ([]identity.EnrollmentRecord, error)

	// Count returns the population size.
	Count(ctx context.Context) (int, error)
}
