package livedb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

type Options struct {
	SampleRows     int
	ReadOnly       bool
	MaxOpenConns   int
	ConnectTimeout time.Duration
}

// Database is the live connection held by one session.
type Database struct {
	db      *sqlx.DB
	params  ConnectionParams
	options Options
}

func Open(ctx context.Context, params ConnectionParams, opts Options) (*Database, error) {
	params, err := params.Normalize()
	if err != nil {
		return nil, err
	}

	dsn := params.DSN()
	if opts.ReadOnly {
		dsn = params.readOnlyDSN()
	}
	db, err := sqlx.Open(params.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", params.Dialect, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database %s: %w", params.Dialect, params.Redacted(), err)
	}

	return &Database{db: db, params: params, options: opts}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB, dialect Dialect, opts Options) *Database {
	return &Database{
		db:      sqlx.NewDb(db, dialect.DriverName()),
		params:  ConnectionParams{Dialect: dialect},
		options: opts,
	}
}

func (d *Database) Dialect() Dialect { return d.params.Dialect }

// Target describes the connection without credentials.
func (d *Database) Target() string {
	if d.params.Dialect.fileBacked() {
		return string(d.params.Dialect) + ":" + d.params.Database
	}
	if d.params.Host == "" {
		return string(d.params.Dialect)
	}
	return fmt.Sprintf("%s://%s:%d/%s", d.params.Dialect, d.params.Host, d.params.Port, d.params.Database)
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
