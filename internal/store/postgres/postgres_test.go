//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/glasslink/faceid/internal/config"
	"github.com/glasslink/faceid/internal/identity"
	"github.com/glasslink/faceid/internal/store"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testVector(first float32) identity.Vector {
	v := make(identity.Vector, identity.Dim)
	v[0] = first
	return v
}

func TestEnrollmentStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	st := NewEnrollmentStore(pool)

	t.Run("UpsertAndGet", func(t *testing.T) {
		rec := identity.NewEnrollmentRecord("user-ada", testVector(0.5), "Ada", "ada@example.com")
		if err := st.Upsert(ctx, rec); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}

		got, err := st.Get(ctx, "user-ada")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got.DisplayName != "Ada" || got.ContactEmail != "ada@example.com" {
			t.Errorf("Unexpected metadata: %+v", got)
		}
		if len(got.Vector) != identity.Dim {
			t.Errorf("Expected %d dimensions, got %d", identity.Dim, len(got.Vector))
		}
		if got.Vector[0] != 0.5 {
			t.Errorf("Expected vector[0]=0.5, got %f", got.Vector[0])
		}
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		rec := identity.NewEnrollmentRecord("user-ada", testVector(0.7), "Ada Lovelace", "ada@example.com")
		if err := st.Upsert(ctx, rec); err != nil {
			t.Fatalf("Failed to re-upsert: %v", err)
		}

		count, err := st.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 record after re-enrollment, got %d", count)
		}

		got, _ := st.Get(ctx, "user-ada")
		if got.Vector[0] != 0.7 {
			t.Errorf("Expected replaced vector, got %f", got.Vector[0])
		}
	})

	t.Run("UpsertUniqueRejectsDuplicateFace", func(t *testing.T) {
		dup := identity.NewEnrollmentRecord("user-bob", testVector(0.7), "Bob", "")
		err := st.UpsertUnique(ctx, dup, 0.6)
		if !errors.Is(err, store.ErrDuplicateIdentity) {
			t.Fatalf("Expected ErrDuplicateIdentity, got %v", err)
		}

		distinct := identity.NewEnrollmentRecord("user-bob", testVector(5.0), "Bob", "")
		if err := st.UpsertUnique(ctx, distinct, 0.6); err != nil {
			t.Fatalf("Failed to enroll distinct face: %v", err)
		}
	})

	t.Run("UpsertUniqueAllowsReEnrollment", func(t *testing.T) {
		rec := identity.NewEnrollmentRecord("user-ada", testVector(0.72), "Ada", "ada@example.com")
		if err := st.UpsertUnique(ctx, rec, 0.6); err != nil {
			t.Fatalf("Re-enrollment of the same user must pass: %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		recs, err := st.List(ctx)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(recs))
		}
		if recs[0].UserID != "user-ada" || recs[1].UserID != "user-bob" {
			t.Errorf("Expected user_id ordering, got %s, %s", recs[0].UserID, recs[1].UserID)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := st.Delete(ctx, "user-bob"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if _, err := st.Get(ctx, "user-bob"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := st.Delete(ctx, "user-bob"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for second delete, got %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := st.Get(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
