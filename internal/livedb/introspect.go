package livedb

import (
	"context"
	"fmt"
	"strings"
)

const informationSchemaColumnsQuery = `SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE t.table_type = 'BASE TABLE'
  AND c.table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

const sqliteTablesQuery = `SELECT name, sql FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`

type columnInfo struct {
	Schema   string `db:"table_schema"`
	Table    string `db:"table_name"`
	Name     string `db:"column_name"`
	DataType string `db:"data_type"`
	Nullable string `db:"is_nullable"`
}

type sqliteTable struct {
	Name string `db:"name"`
	SQL  string `db:"sql"`
}

type tableDef struct {
	schema  string
	name    string
	ddl     string
	columns []columnInfo
}

func (t tableDef) qualifiedName() string {
	if t.schema == "" || t.schema == "public" || t.schema == "main" {
		return quoteIdent(t.name)
	}
	return quoteIdent(t.schema) + "." + quoteIdent(t.name)
}

func (t tableDef) displayName() string {
	if t.schema == "" || t.schema == "public" || t.schema == "main" {
		return t.name
	}
	return t.schema + "." + t.name
}

// DescribeSchema renders every user table as a CREATE TABLE statement followed
// by a comment block with sample rows. It queries the database on each call.
func (d *Database) DescribeSchema(ctx context.Context) (string, error) {
	tables, err := d.listTables(ctx)
	if err != nil {
		return "", err
	}

	blocks := make([]string, 0, len(tables))
	for _, table := range tables {
		block := table.ddl
		if d.options.SampleRows > 0 {
			if sample := d.sampleRows(ctx, table); sample != "" {
				block += "\n\n" + sample
			}
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (d *Database) listTables(ctx context.Context) ([]tableDef, error) {
	if d.params.Dialect == DialectSQLite {
		var rows []sqliteTable
		if err := d.db.SelectContext(ctx, &rows, sqliteTablesQuery); err != nil {
			return nil, fmt.Errorf("list sqlite tables: %w", err)
		}
		tables := make([]tableDef, 0, len(rows))
		for _, row := range rows {
			tables = append(tables, tableDef{name: row.Name, ddl: strings.TrimSpace(row.SQL)})
		}
		return tables, nil
	}

	var columns []columnInfo
	if err := d.db.SelectContext(ctx, &columns, informationSchemaColumnsQuery); err != nil {
		return nil, fmt.Errorf("list table columns: %w", err)
	}
	tables := make([]tableDef, 0)
	for _, column := range columns {
		n := len(tables)
		if n == 0 || tables[n-1].schema != column.Schema || tables[n-1].name != column.Table {
			tables = append(tables, tableDef{schema: column.Schema, name: column.Table})
			n++
		}
		tables[n-1].columns = append(tables[n-1].columns, column)
	}
	for i := range tables {
		tables[i].ddl = renderCreateTable(tables[i])
	}
	return tables, nil
}

func renderCreateTable(table tableDef) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(table.displayName())
	b.WriteString(" (\n")
	for i, column := range table.columns {
		b.WriteString("\t")
		b.WriteString(column.Name)
		b.WriteString(" ")
		b.WriteString(strings.ToUpper(column.DataType))
		if strings.EqualFold(column.Nullable, "NO") {
			b.WriteString(" NOT NULL")
		}
		if i < len(table.columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// sampleRows returns an empty string when the table cannot be sampled.
func (d *Database) sampleRows(ctx context.Context, table tableDef) string {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", table.qualifiedName(), d.options.SampleRows)
	rows, err := d.db.QueryxContext(ctx, query)
	if err != nil {
		return ""
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return ""
	}
	lines := []string{strings.Join(columns, "\t")}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return ""
		}
		cells := make([]string, len(values))
		for i, value := range normalizeValues(values) {
			cells[i] = formatCell(value)
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	if rows.Err() != nil {
		return ""
	}
	return fmt.Sprintf("/*\n%d rows from %s table:\n%s\n*/", len(lines)-1, table.displayName(), strings.Join(lines, "\n"))
}

func formatCell(value any) string {
	if value == nil {
		return "None"
	}
	text := fmt.Sprint(value)
	if runes := []rune(text); len(runes) > 100 {
		text = string(runes[:100]) + "..."
	}
	return text
}
