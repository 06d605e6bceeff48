// Package mock provides an in-memory Store for tests, with error injection
// for exercising failure paths.
package mock

import (
	"context"
	"sync"

	"github.com/glasslink/faceid/internal/identity"
	"github.com/glasslink/faceid/internal/store"
)

// Store keeps enrollment records in memory, preserving insertion order for
// List. The error fields, when set, are returned by the matching method
// instead of performing the operation.
type Store struct {
	mu    sync.Mutex
	order []string
	recs  map[string]identity.EnrollmentRecord

	UpsertErr error
	GetErr    error
	DeleteErr error
	ListErr   error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{recs: make(map[string]identity.EnrollmentRecord)}
}

// Upsert creates or replaces the record for rec.UserID.
func (m *Store) Upsert(ctx context.Context, rec identity.EnrollmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.put(rec)
	return nil
}

// UpsertUnique rejects the write when another user's vector lies within
// tolerance of rec.Vector.
func (m *Store) UpsertUnique(ctx context.Context, rec identity.EnrollmentRecord, tolerance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	for _, id := range m.order {
		if id == rec.UserID {
			continue
		}
		if identity.Distance(rec.Vector, m.recs[id].Vector) <= tolerance {
			return store.ErrDuplicateIdentity
		}
	}
	m.put(rec)
	return nil
}

// Get returns the record for userID.
func (m *Store) Get(ctx context.Context, userID string) (*identity.EnrollmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.recs[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

// Delete removes the record for userID.
func (m *Store) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.recs[userID]; !ok {
		return store.ErrNotFound
	}
	delete(m.recs, userID)
	for i, id := range m.order {
		if id == userID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns the population in insertion order.
func (m *Store) List(ctx context.Context) ([]identity.EnrollmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]identity.EnrollmentRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.recs[id])
	}
	return out, nil
}

// Count returns the population size.
func (m *Store) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return 0, m.ListErr
	}
	return len(m.recs), nil
}

func (m *Store) put(rec identity.EnrollmentRecord) {
	if _, ok := m.recs[rec.UserID]; !ok {
		m.order = append(m.order, rec.UserID)
	}
	m.recs[rec.UserID] = rec
}
