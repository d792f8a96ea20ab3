package livedb

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	ErrInvalidParams      = errors.New("invalid connection parameters")
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(raw string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "postgres", "postgresql":
		return DialectPostgres, nil
	case "duckdb":
		return DialectDuckDB, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, raw)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectDuckDB:
		return "duckdb"
	case DialectSQLite:
		return "sqlite"
	default:
		return "pgx"
	}
}

// fileBacked dialects treat Database as a file path and ignore network fields.
func (d Dialect) fileBacked() bool {
	return d == DialectDuckDB || d == DialectSQLite
}

// ConnectionParams are the discrete fields of the connection form.
type ConnectionParams struct {
	Host     string  `json:"host"`
	Port     int     `json:"port"`
	User     string  `json:"user"`
	Password string  `json:"password"`
	Database string  `json:"database"`
	Dialect  Dialect `json:"dialect"`
}

func (p ConnectionParams) Normalize() (ConnectionParams, error) {
	dialect, err := ParseDialect(string(p.Dialect))
	if err != nil {
		return ConnectionParams{}, err
	}
	p.Dialect = dialect
	p.Host = strings.TrimSpace(p.Host)
	p.User = strings.TrimSpace(p.User)
	p.Database = strings.TrimSpace(p.Database)

	if dialect.fileBacked() {
		if p.Database == "" {
			return ConnectionParams{}, fmt.Errorf("%w: database file path is required for %s", ErrInvalidParams, dialect)
		}
		return p, nil
	}
	if p.Host == "" {
		p.Host = "localhost"
	}
	if p.Port == 0 {
		p.Port = 5432
	}
	if p.Port < 0 || p.Port > 65535 {
		return ConnectionParams{}, fmt.Errorf("%w: invalid port %d", ErrInvalidParams, p.Port)
	}
	if p.User == "" {
		return ConnectionParams{}, fmt.Errorf("%w: user is required", ErrInvalidParams)
	}
	if p.Database == "" {
		return ConnectionParams{}, fmt.Errorf("%w: database is required", ErrInvalidParams)
	}
	return p, nil
}

// DSN encodes the parameters into a driver connection string. User and
// password are percent-encoded.
func (p ConnectionParams) DSN() string {
	if p.Dialect.fileBacked() {
		return p.Database
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else {
		u.User = url.User(p.User)
	}
	return u.String()
}

// readOnlyDSN asks the engine itself to refuse writes: query_only for sqlite,
// access_mode for duckdb and a read-only default transaction for postgres.
func (p ConnectionParams) readOnlyDSN() string {
	dsn := p.DSN()
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	switch p.Dialect {
	case DialectSQLite:
		return dsn + sep + "_pragma=query_only(1)"
	case DialectDuckDB:
		return dsn + sep + "access_mode=READ_ONLY"
	default:
		return dsn + sep + "default_transaction_read_only=on"
	}
}

// Redacted is DSN with the password masked, safe for logs and responses.
func (p ConnectionParams) Redacted() string {
	if p.Password == "" || p.Dialect.fileBacked() {
		return p.DSN()
	}
	masked := p
	masked.Password = "xxxxx"
	return masked.DSN()
}

// ParseAssignments reads key=value fields such as "host=db port=5432" into
// parameters. Values are not normalized.
func ParseAssignments(fields []string) (ConnectionParams, error) {
	var params ConnectionParams
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return ConnectionParams{}, fmt.Errorf("%w: expected key=value, got %q", ErrInvalidParams, field)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "host":
			params.Host = value
		case "port":
			port, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return ConnectionParams{}, fmt.Errorf("%w: port must be a number", ErrInvalidParams)
			}
			params.Port = port
		case "user":
			params.User = value
		case "password":
			params.Password = value
		case "database", "dbname":
			params.Database = value
		case "dialect":
			params.Dialect = Dialect(value)
		default:
			return ConnectionParams{}, fmt.Errorf("%w: unknown field %q", ErrInvalidParams, key)
		}
	}
	return params, nil
}
