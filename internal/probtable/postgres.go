package probtable

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/db"
	"github.com/sells-group/surgeo/internal/model"
)

// PostgresSource stores one table per kind under a PostgreSQL schema.
type PostgresSource struct {
	Pool   db.Pool
	Schema string
}

// NewPostgresSource wraps an open pool.
func NewPostgresSource(pool db.Pool, schema string) *PostgresSource {
	if schema == "" {
		schema = "bisg"
	}
	return &PostgresSource{Pool: pool, Schema: schema}
}

func (s *PostgresSource) ident(kind Kind) string {
	return pgx.Identifier{s.Schema, kind.String()}.Sanitize()
}

// Load reads the table for kind ordered by key.
func (s *PostgresSource) Load(ctx context.Context, kind Kind) (*Table, error) {
	keyCols := kind.KeyColumns()
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(sqlColumns(kind), ", "), s.ident(kind), strings.Join(keyCols, ", "))

	rows, err := s.Pool.Query(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", kind)
	}
	defer rows.Close()

	b := NewBuilder(kind, 0)
	for rows.Next() {
		keys := make([]string, len(keyCols))
		var vals [model.NumRaces]*float64
		dest := make([]any, 0, len(keyCols)+model.NumRaces)
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", kind)
		}
		key, err := TableKey(kind, keys)
		if err != nil {
			return nil, err
		}
		if err := b.Add(key, vectorFromNullable(vals)); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate %s", kind)
	}
	return b.Build(), nil
}

// Import replaces the stored table for t's kind with a transactional COPY.
func (s *PostgresSource) Import(ctx context.Context, t *Table) (int64, error) {
	kind := t.Kind()
	rows := make([][]any, 0, t.Len())
	t.Each(func(key string, v model.ProbabilityVector) {
		rows = append(rows, sqlRow(kind, key, v))
	})
	n, err := db.ReplaceTable(ctx, s.Pool, db.ReplaceConfig{
		Schema:  s.Schema,
		Table:   kind.String(),
		DDL:     sqlDDL(kind, "TEXT", "DOUBLE PRECISION"),
		Columns: sqlColumns(kind),
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: import %s", kind)
	}
	return n, nil
}
