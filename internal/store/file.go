package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glasslink/faceid/internal/identity"
)

// document is the persisted population representation: an ordered list of
// enrollment records plus a collection-wide timestamp. Every mutation
// rewrites the whole document; there is no partial update.
type document struct {
	Encodings   []identity.EnrollmentRecord `json:"encodings"`
	LastUpdated time.Time                   `json:"last_updated"`
}

// FileStore persists the population as a single JSON document. All
// read-modify-write sequences are serialized behind one mutex scoped to the
// store instance, and every save replaces the file atomically via a temp
// file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (or initializes) the encodings document at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &FileStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(document{Encodings: []identity.EnrollmentRecord{}, LastUpdated: time.Now().UTC()}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Upsert creates or replaces the record keyed by rec.UserID.
func (s *FileStore) Upsert(ctx context.Context, rec identity.EnrollmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(rec)
}

// UpsertUnique rejects the write when any other user's vector lies within
// tolerance of the new one. The nearest scan and the write happen under the
// same lock, so two racing registrations of one face cannot both commit.
func (s *FileStore) UpsertUnique(ctx context.Context, rec identity.EnrollmentRecord, tolerance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Encodings {
		if doc.Encodings[i].UserID == rec.UserID {
			continue
		}
		if identity.Distance(rec.Vector, doc.Encodings[i].Vector) <= tolerance {
			return ErrDuplicateIdentity
		}
	}
	return s.upsertLocked(rec)
}

// Get returns the record for userID.
func (s *FileStore) Get(ctx context.Context, userID string) (*identity.EnrollmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range doc.Encodings {
		if doc.Encodings[i].UserID == userID {
			rec := doc.Encodings[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes the record for userID.
func (s *FileStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	kept := doc.Encodings[:0]
	found := false
	for i := range doc.Encodings {
		if doc.Encodings[i].UserID == userID {
			found = true
			continue
		}
		kept = append(kept, doc.Encodings[i])
	}
	if !found {
		return ErrNotFound
	}

	doc.Encodings = kept
	doc.LastUpdated = time.Now().UTC()
	return s.save(doc)
}

// List returns the population in document order.
func (s *FileStore) List(ctx context.Context) ([]identity.EnrollmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Encodings, nil
}

// Count returns the population size.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(doc.Encodings), nil
}

// upsertLocked replaces or appends rec and rewrites the document.
// Caller must hold s.mu.
func (s *FileStore) upsertLocked(rec identity.EnrollmentRecord) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range doc.Encodings {
		if doc.Encodings[i].UserID == rec.UserID {
			doc.Encodings[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Encodings = append(doc.Encodings, rec)
	}

	doc.LastUpdated = time.Now().UTC()
	return s.save(doc)
}

func (s *FileStore) load() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if err != nil {
		return doc, fmt.Errorf("reading encodings file: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing encodings file: %w", err)
	}
	return doc, nil
}

func (s *FileStore) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding enrollments: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing encodings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing encodings file: %w", err)
	}
	return nil
}
