package livedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrReadOnly = errors.New("only a single SELECT or WITH statement is allowed")

type Result struct {
	Columns []string
	Rows    [][]any
}

// String renders rows as a bracketed list of tuples, the same text the
// explanation prompt embeds as the SQL response. An empty result renders "".
func (r Result) String() string {
	if len(r.Rows) == 0 {
		return ""
	}
	tuples := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = literal(value)
		}
		tuple := "(" + strings.Join(cells, ", ")
		if len(cells) == 1 {
			tuple += ","
		}
		tuples = append(tuples, tuple+")")
	}
	return "[" + strings.Join(tuples, ", ") + "]"
}

func literal(value any) string {
	switch typed := value.(type) {
	case nil:
		return "None"
	case bool:
		if typed {
			return "True"
		}
		return "False"
	case string:
		return "'" + strings.ReplaceAll(typed, "'", `\'`) + "'"
	case time.Time:
		return "'" + typed.Format(time.RFC3339Nano) + "'"
	default:
		return fmt.Sprint(typed)
	}
}

// Execute runs sqlText on the live connection and collects every returned row.
// When the database was opened read-only, anything but a single SELECT/WITH
// statement is refused and the query runs in a read-only transaction where
// the driver supports one. The connection itself is opened read-only too, so
// writes hidden inside a WITH clause fail in the engine.
func (d *Database) Execute(ctx context.Context, sqlText string) (Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return Result{}, fmt.Errorf("sql is required")
	}
	if !d.options.ReadOnly {
		return d.query(ctx, d.db, sqlText)
	}
	if !IsReadOnlySQL(sqlText) || hasStackedStatements(sqlText) {
		return Result{}, ErrReadOnly
	}
	// go-duckdb refuses read-only transactions; access_mode covers it instead.
	if d.params.Dialect == DialectDuckDB {
		return d.query(ctx, d.db, sqlText)
	}

	tx, err := d.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Result{}, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return d.query(ctx, tx, sqlText)
}

func (d *Database) query(ctx context.Context, q sqlx.QueryerContext, sqlText string) (Result, error) {
	rows, err := q.QueryxContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return Result{Columns: columns, Rows: resultRows}, nil
}

// IsReadOnlySQL reports whether the statement starts with SELECT or WITH.
func IsReadOnlySQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return false
	}
	if strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with") {
		return true
	}
	return false
}

// hasStackedStatements reports whether a semicolon appears outside string
// literals, quoted identifiers, dollar quotes and comments.
func hasStackedStatements(sqlText string) bool {
	for i := 0; i < len(sqlText); i++ {
		switch c := sqlText[i]; {
		case c == ';':
			return true
		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(sqlText[i+1:], c)
			if end < 0 {
				return false
			}
			// Doubled quotes re-enter the literal on the next iteration.
			i += end + 1
		case c == '-' && strings.HasPrefix(sqlText[i:], "--"):
			end := strings.IndexByte(sqlText[i:], '\n')
			if end < 0 {
				return false
			}
			i += end
		case c == '/' && strings.HasPrefix(sqlText[i:], "/*"):
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 3
		case c == '$':
			tag, ok := dollarTag(sqlText[i:])
			if !ok {
				continue
			}
			end := strings.Index(sqlText[i+len(tag):], tag)
			if end < 0 {
				return false
			}
			i += len(tag) + end + len(tag) - 1
		}
	}
	return false
}

// dollarTag returns the opening $tag$ of a postgres dollar-quoted string.
func dollarTag(text string) (string, bool) {
	for j := 1; j < len(text); j++ {
		c := text[j]
		switch {
		case c == '$':
			return text[:j+1], true
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || j > 1 && c >= '0' && c <= '9':
		default:
			return "", false
		}
	}
	return "", false
}
