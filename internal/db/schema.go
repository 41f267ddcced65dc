package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Table is one user table with its columns in declaration order.
type Table struct {
	Name    string
	Columns []string
}

// Schema lists user tables in sqlite_master order.
type Schema struct {
	Tables []Table
}

func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Describe renders one "Table 'name': col, col" line per table.
func (s Schema) Describe() string {
	lines := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		lines = append(lines, fmt.Sprintf("Table '%s': %s", t.Name, strings.Join(t.Columns, ", ")))
	}
	return strings.Join(lines, "\n")
}

func Introspect(ctx context.Context, db *sql.DB) (Schema, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		  AND name NOT LIKE 'goose_%'
		ORDER BY rowid`)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to list tables: %w", err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return Schema{}, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Schema{}, err
	}

	var schema Schema
	for _, name := range names {
		cols, err := tableColumns(ctx, db, name)
		if err != nil {
			return Schema{}, err
		}
		schema.Tables = append(schema.Tables, Table{Name: name, Columns: cols})
	}
	return schema, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	// table comes from sqlite_master, quoting guards odd names
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, strings.ReplaceAll(table, `"`, `""`)))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
