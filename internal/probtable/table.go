package probtable

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/model"
)

var (
	// ErrDuplicateKey is returned when a table source has two rows for the
	// same canonical key.
	ErrDuplicateKey = eris.New("probtable: duplicate key")
	// ErrMissingColumn is returned when a table source lacks a key or race column.
	ErrMissingColumn = eris.New("probtable: missing column")
	// ErrKindMismatch is returned when a table of one kind is used where
	// another is required.
	ErrKindMismatch = eris.New("probtable: table kind mismatch")
)

// Table maps canonical keys to probability vectors. It is never mutated
// after Build and may be read concurrently without locking.
type Table struct {
	kind Kind
	keys []string
	rows map[string]model.ProbabilityVector
}

// Kind returns the table's proxy and orientation.
func (t *Table) Kind() Kind {
	return t.kind
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.keys)
}

// Lookup returns the vector for key, or the MISSING vector and false.
func (t *Table) Lookup(key string) (model.ProbabilityVector, bool) {
	v, ok := t.rows[key]
	if !ok {
		return model.MissingVector(), false
	}
	return v, true
}

// Keys returns the keys in source order.
func (t *Table) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Each calls fn for every row in source order.
func (t *Table) Each(fn func(key string, v model.ProbabilityVector)) {
	for _, k := range t.keys {
		fn(k, t.rows[k])
	}
}

// Expect returns ErrKindMismatch unless the table is of the wanted kind.
func (t *Table) Expect(want Kind) error {
	if t == nil {
		return eris.Wrapf(ErrKindMismatch, "want %s, got nil table", want)
	}
	if t.kind != want {
		return eris.Wrapf(ErrKindMismatch, "want %s, got %s", want, t.kind)
	}
	return nil
}

// CheckRowSums returns the keys of non-missing rows whose sum differs from 1
// by more than tol. Only race-given tables are expected to pass.
func (t *Table) CheckRowSums(tol float64) []string {
	var bad []string
	t.Each(func(key string, v model.ProbabilityVector) {
		if v.IsMissing() {
			return
		}
		if math.Abs(v.Sum()-1) > tol {
			bad = append(bad, key)
		}
	})
	return bad
}

// ColumnSums adds each race column over all non-missing rows. For a complete
// given-race table every entry is close to 1.
func (t *Table) ColumnSums() model.ProbabilityVector {
	var out model.ProbabilityVector
	t.Each(func(_ string, v model.ProbabilityVector) {
		if v.IsMissing() {
			return
		}
		for i := range v {
			out[i] += v[i]
		}
	})
	return out
}

// MissingRows counts rows carrying a MISSING vector.
func (t *Table) MissingRows() int {
	n := 0
	for _, v := range t.rows {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Builder accumulates rows for a Table and rejects duplicate keys.
type Builder struct {
	kind Kind
	keys []string
	rows map[string]model.ProbabilityVector
}

// NewBuilder returns a builder for the given kind. sizeHint may be zero.
func NewBuilder(kind Kind, sizeHint int) *Builder {
	return &Builder{
		kind: kind,
		keys: make([]string, 0, sizeHint),
		rows: make(map[string]model.ProbabilityVector, sizeHint),
	}
}

// Add inserts one row under an already canonical key.
func (b *Builder) Add(key string, v model.ProbabilityVector) error {
	if _, dup := b.rows[key]; dup {
		return eris.Wrapf(ErrDuplicateKey, "%s key %q", b.kind, key)
	}
	b.keys = append(b.keys, key)
	b.rows[key] = v
	return nil
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int {
	return len(b.keys)
}

// Build returns the finished table. The builder must not be used afterwards.
func (b *Builder) Build() *Table {
	t := &Table{kind: b.kind, keys: b.keys, rows: b.rows}
	b.keys, b.rows = nil, nil
	return t
}

// FromRows builds a table from parallel key/vector slices. Keys are
// canonicalized with TableKey.
func FromRows(kind Kind, keys [][]string, vecs []model.ProbabilityVector) (*Table, error) {
	if len(keys) != len(vecs) {
		return nil, eris.Errorf("probtable: %d keys for %d vectors", len(keys), len(vecs))
	}
	b := NewBuilder(kind, len(keys))
	for i, fields := range keys {
		key, err := TableKey(kind, fields)
		if err != nil {
			return nil, err
		}
		if err := b.Add(key, vecs[i]); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
