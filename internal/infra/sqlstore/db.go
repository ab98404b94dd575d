// Package sqlstore persists clients, kinship edges and representatives in a
// relational database. PostgreSQL is the production backend; SQLite backs
// local development and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/resilience"

	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("sqlstore")

// Dialect names double as database/sql driver names and goose dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Options configures the connection pool.
type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Open opens a pool and pings it with retry. SQLite pools are pinned to a
// single connection so writers never contend for the file lock.
func Open(ctx context.Context, opts Options, retry resilience.Config, logger *zap.Logger) (*sql.DB, error) {
	dsn := opts.DSN
	switch opts.Driver {
	case DialectPostgres:
	case DialectSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	if opts.Driver == DialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	db.SetConnMaxLifetime(time.Hour)

	attempt := 0
	err = resilience.RetryWithBackoff(ctx, retry, func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn("database ping failed",
				zap.String("driver", opts.Driver),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if isRejected(err) {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	return db, nil
}

// sqliteDSN adds the pragmas the stores rely on (foreign keys in particular).
func sqliteDSN(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

// DB wraps a pool with its dialect and the storage circuit breaker.
type DB struct {
	conn    *sql.DB
	dialect string
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New wraps an open pool. dialect must match the driver the pool was opened with.
func New(conn *sql.DB, dialect string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *DB {
	return &DB{conn: conn, dialect: dialect, cb: cb, logger: logger}
}

// Conn returns the underlying pool.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Dialect returns the SQL dialect of the pool.
func (d *DB) Dialect() string {
	return d.dialect
}

// Ping checks the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.run(ctx, "database", "Ping", func(ctx context.Context) error {
		return d.conn.PingContext(ctx)
	})
}

// rebind rewrites '?' placeholders into '$n' for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// run executes fn inside a span and the circuit breaker. Only connectivity
// failures count against the breaker; everything else is returned untouched.
func (d *DB) run(ctx context.Context, store, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "SQLStore."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", d.dialect),
		attribute.String("db.table", store),
	)

	var opErr error
	_, cbErr := d.cb.Execute(func() (any, error) {
		opErr = fn(ctx)
		if opErr != nil && isUnavailable(opErr) {
			return nil, opErr
		}
		return nil, nil
	})
	if cbErr != nil {
		span.RecordError(cbErr)
		d.logger.Error("sqlstore: storage unavailable",
			zap.String("store", store),
			zap.String("op", op),
			zap.Error(cbErr),
		)
		return &domain.ErrStorageUnavailable{Store: store, Err: cbErr}
	}
	if opErr != nil {
		span.RecordError(opErr)
	}
	return opErr
}
