package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// Dialect selects the SQL flavour of the connection.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps a database/sql connection pool for PostgreSQL or SQLite.
type DB struct {
	Pool    *sql.DB
	Dialect Dialect
}

// New opens the database named by databaseURL. postgres:// and postgresql://
// URLs use lib/pq; sqlite://<path> (or sqlite::memory:) uses modernc.org/sqlite.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	switch dialect {
	case Postgres:
		pool.SetMaxOpenConns(25)
		pool.SetMaxIdleConns(5)
	case SQLite:
		// SQLite prefers a single writer; it also keeps :memory: databases alive.
		pool.SetMaxOpenConns(1)
		pool.SetMaxIdleConns(1)
		pool.SetConnMaxLifetime(0)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dialect == SQLite {
		_, _ = pool.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
		_, _ = pool.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	}

	return &DB{Pool: pool, Dialect: dialect}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *sql.DB, dialect Dialect) *DB {
	return &DB{Pool: pool, Dialect: dialect}
}

// ParseURL maps a database URL to a driver dialect and its DSN.
func ParseURL(databaseURL string) (Dialect, string, error) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return Postgres, u, nil
	case strings.HasPrefix(u, "sqlite://"):
		return SQLite, strings.TrimPrefix(u, "sqlite://"), nil
	case strings.HasPrefix(u, "sqlite:"):
		return SQLite, strings.TrimPrefix(u, "sqlite:"), nil
	case u == "":
		return "", "", errors.New("database url is empty")
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", u)
	}
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// Migrate runs the database schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	stmt := postgresMigrationSQL
	if d.Dialect == SQLite {
		stmt = sqliteMigrationSQL
	}
	if _, err := d.Pool.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqliteTimeLayout is fixed width so text timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timeArg encodes t for the dialect. SQLite stores timestamps as text.
func (d *DB) timeArg(t time.Time) any {
	if d.Dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// timeValue scans timestamps stored natively or as text.
type timeValue struct {
	t *time.Time
}

func (v timeValue) Scan(src any) error {
	switch x := src.(type) {
	case time.Time:
		*v.t = x
	case string:
		return v.parse(x)
	case []byte:
		return v.parse(string(x))
	case nil:
		*v.t = time.Time{}
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func (v timeValue) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*v.t = t
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

const postgresMigrationSQL = `
CREATE TABLE IF NOT EXISTS dispatches (
    id             TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    user_id        BIGINT NOT NULL,
    kind           TEXT NOT NULL,
    sequence       INTEGER NOT NULL,
    status         TEXT NOT NULL,
    error          TEXT,
    ack            JSONB,
    started_at     TIMESTAMPTZ NOT NULL,
    completed_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatches_transaction_id ON dispatches(transaction_id);
CREATE INDEX IF NOT EXISTS idx_dispatches_started_at ON dispatches(started_at DESC);
`

const sqliteMigrationSQL = `
CREATE TABLE IF NOT EXISTS dispatches (
    id             TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    user_id        INTEGER NOT NULL,
    kind           TEXT NOT NULL,
    sequence       INTEGER NOT NULL,
    status         TEXT NOT NULL,
    error          TEXT,
    ack            TEXT,
    started_at     TEXT NOT NULL,
    completed_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatches_transaction_id ON dispatches(transaction_id);
CREATE INDEX IF NOT EXISTS idx_dispatches_started_at ON dispatches(started_at DESC);
`
