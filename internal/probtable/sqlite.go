package probtable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/surgeo/internal/model"
)

// SQLiteSource stores one table per kind in a SQLite database.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database at dsn and configures WAL mode.
func OpenSQLite(dsn string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Load reads the table for kind in insertion order.
func (s *SQLiteSource) Load(ctx context.Context, kind Kind) (*Table, error) {
	cols := sqlColumns(kind)
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), kind)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", kind)
	}
	defer rows.Close() //nolint:errcheck

	nkeys := len(kind.KeyColumns())
	b := NewBuilder(kind, 0)
	for rows.Next() {
		keys := make([]string, nkeys)
		var vals [model.NumRaces]sql.NullFloat64
		dest := make([]any, 0, len(cols))
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", kind)
		}

		var ptrs [model.NumRaces]*float64
		for i := range vals {
			if vals[i].Valid {
				ptrs[i] = &vals[i].Float64
			}
		}
		key, err := TableKey(kind, keys)
		if err != nil {
			return nil, err
		}
		if err := b.Add(key, vectorFromNullable(ptrs)); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate %s", kind)
	}
	return b.Build(), nil
}

// Import replaces the stored table for t's kind inside one transaction.
func (s *SQLiteSource) Import(ctx context.Context, t *Table) (int64, error) {
	kind := t.Kind()
	cols := sqlColumns(kind)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", kind, sqlDDL(kind, "TEXT", "REAL"))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return 0, eris.Wrapf(err, "sqlite: create %s", kind)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+kind.String()); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear %s", kind)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", kind, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert %s", kind)
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	var insertErr error
	t.Each(func(key string, v model.ProbabilityVector) {
		if insertErr != nil {
			return
		}
		if _, err := stmt.ExecContext(ctx, sqlRow(kind, key, v)...); err != nil {
			insertErr = eris.Wrapf(err, "sqlite: insert %s key %q", kind, key)
			return
		}
		n++
	})
	if insertErr != nil {
		return 0, insertErr
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}
