package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// OpenTestSQLite opens a migrated SQLite database in t.TempDir() and
// registers cleanup. The seeded admin representative has id "admin".
func OpenTestSQLite(t *testing.T) *DB {
	t.Helper()

	opts := Options{
		Driver: DialectSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.sqlite"),
	}
	retry := resilience.Config{MaxRetries: 0, InitialBackoff: 10 * time.Millisecond}

	conn, err := Open(context.Background(), opts, retry, zap.NewNop())
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := RunMigrations(conn, DialectSQLite); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return New(conn, DialectSQLite, resilience.NewCircuitBreaker("test-db"), zap.NewNop())
}

// SeedRepresentatives creates an active REPRESENTATIVE for each id, using
// the id as name and login. Clients may only reference seeded ids.
func SeedRepresentatives(t *testing.T, db *DB, ids ...string) {
	t.Helper()
	reps := NewRepresentativeStore(db)
	for _, id := range ids {
		rep := &domain.Representative{
			ID: id, Name: id, Login: id,
			Role: domain.RoleRepresentative, Status: domain.RepresentativeActive,
		}
		if err := reps.Create(context.Background(), rep); err != nil {
			t.Fatalf("seed representative %s: %v", id, err)
		}
	}
}
