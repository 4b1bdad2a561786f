package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reservo/internal/config"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrNotAvailable           = errors.New("not enough rooms available")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrGuardFailed            = errors.New("guard no longer holds")
	ErrPayoutExists           = errors.New("payout already exists for host and period")
	ErrCouponUnavailable      = errors.New("coupon is not usable")
)

type DB struct {
	*sql.DB
	driver string
	path   string
	logger *zerolog.Logger
}

// Open connects to the store selected by cfg.Driver and creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresDB(ctx, cfg.Postgres, logger)
	default:
		return NewDB(cfg.Path, logger)
	}
}

// NewDB opens a SQLite database at path. ":memory:" is accepted for tests.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps :memory: a single database.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, driver: config.DriverSQLite, path: path, logger: logger}
	if err := db.createTables(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// NewPostgresDB connects with retries; the server may still be starting.
func NewPostgresDB(ctx context.Context, cfg config.PostgresConfig, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		sqlDB, err = sql.Open("postgres", cfg.DSN())
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err == nil {
			break
		}
		if sqlDB != nil {
			sqlDB.Close()
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Database not ready yet")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}

	db := &DB{DB: sqlDB, driver: config.DriverPostgres, logger: logger}
	if err := db.createTables(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Database initialized")
	return db, nil
}

func (db *DB) Driver() string { return db.driver }

// Path is the SQLite file path, empty for postgres.
func (db *DB) Path() string { return db.path }

func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schema(db.driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error executing query %s: %w", stmt, err)
		}
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// conn runs queries written with ? placeholders against either dialect.
type conn struct {
	q      querier
	driver string
}

func (c conn) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.q.ExecContext(ctx, rebind(c.driver, query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, rebind(c.driver, query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.q.QueryRowContext(ctx, rebind(c.driver, query), args...)
}

// forUpdate is appended to row reads inside transactions. SQLite has no row
// locks; its single connection already serializes transactions.
func (c conn) forUpdate() string {
	if c.driver == config.DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (c conn) skipLocked() string {
	if c.driver == config.DriverPostgres {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

func (db *DB) conn() conn { return conn{q: db.DB, driver: db.driver} }

type txConn struct {
	conn
	tx *sql.Tx
}

// withTx runs fn inside one transaction. Code inside fn must only use tc;
// calling back into db would block on the single SQLite connection.
func (db *DB) withTx(ctx context.Context, fn func(tc txConn) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txConn{conn: conn{q: tx, driver: db.driver}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func rebind(driver, query string) string {
	if driver != config.DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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

// ts normalizes timestamps before storage so SQLite text comparisons order correctly.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func tsPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
