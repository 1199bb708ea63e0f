package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceConfig describes a table whose contents are swapped wholesale.
type ReplaceConfig struct {
	Schema  string
	Table   string
	DDL     string   // column definitions, e.g. `name TEXT PRIMARY KEY, white DOUBLE PRECISION`
	Columns []string // COPY column order
}

// Ident returns the sanitized schema-qualified table name.
func (c ReplaceConfig) Ident() string {
	return pgx.Identifier{c.Schema, c.Table}.Sanitize()
}

// ReplaceTable creates the schema and table if needed, truncates it and
// bulk-loads rows with COPY inside one transaction. Readers never observe a
// half-loaded table.
func ReplaceTable(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if cfg.Schema == "" || cfg.Table == "" {
		return 0, eris.New("db: replace: schema and table are required")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{cfg.Schema}.Sanitize()),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", cfg.Ident(), cfg.DDL),
		fmt.Sprintf("TRUNCATE %s", cfg.Ident()),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return 0, eris.Wrapf(err, "db: replace: %s", firstWords(stmt, 2))
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{cfg.Schema, cfg.Table}, cfg.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace: COPY INTO %s.%s", cfg.Schema, cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

func firstWords(s string, n int) string {
	f := strings.Fields(s)
	if len(f) > n {
		f = f[:n]
	}
	return strings.ToLower(strings.Join(f, " "))
}
