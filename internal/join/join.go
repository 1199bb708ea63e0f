// Package join aligns a batch of raw identifiers against a probability
// table with left-outer-join semantics: every input row yields exactly one
// output vector, in input order, and unmatched rows carry MISSING.
package join

import (
	"github.com/sells-group/surgeo/internal/model"
	"github.com/sells-group/surgeo/internal/normalize"
	"github.com/sells-group/surgeo/internal/probtable"
)

// Column is the result of one join: the normalized keys used for lookup and
// the matched vectors, both aligned with the input.
type Column struct {
	Keys    []string
	Vectors []model.ProbabilityVector
}

// Len returns the number of rows.
func (c Column) Len() int {
	return len(c.Vectors)
}

// Unmatched counts rows whose key was absent from the table.
func (c Column) Unmatched() int {
	n := 0
	for _, v := range c.Vectors {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Option adjusts join behaviour.
type Option func(*options)

type options struct {
	fallback *model.ProbabilityVector
}

// WithFallback substitutes v for keys absent from the table instead of
// MISSING. Rows that exist in the table with NaN cells are left as they are.
func WithFallback(v model.ProbabilityVector) Option {
	return func(o *options) {
		o.fallback = &v
	}
}

func apply(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Names normalizes raw surnames or first names and looks them up.
func Names(raw []string, t *probtable.Table, opts ...Option) Column {
	return lookup(normalize.Names(raw), t, apply(opts))
}

// ZCTAs normalizes raw ZCTAs and looks them up.
func ZCTAs(raw []string, t *probtable.Table, opts ...Option) Column {
	return lookup(normalize.ZCTAs(raw), t, apply(opts))
}

// Tracts looks up positional tract triples. Input codes are not padded.
func Tracts(raw []normalize.Tract, t *probtable.Table, opts ...Option) Column {
	keys := make([]string, len(raw))
	for i, tr := range raw {
		keys[i] = tr.Key()
	}
	return lookup(keys, t, apply(opts))
}

func lookup(keys []string, t *probtable.Table, o options) Column {
	out := Column{Keys: keys, Vectors: make([]model.ProbabilityVector, len(keys))}
	for i, k := range keys {
		v, ok := t.Lookup(k)
		if !ok && o.fallback != nil {
			v = *o.fallback
		}
		out.Vectors[i] = v
	}
	return out
}
