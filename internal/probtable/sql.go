package probtable

import (
	"math"
	"strings"

	"github.com/sells-group/surgeo/internal/model"
)

// sqlColumns returns key columns followed by the six race columns, the
// column layout shared by the SQLite and PostgreSQL sources.
func sqlColumns(kind Kind) []string {
	return append(kind.KeyColumns(), model.RaceColumns()...)
}

// sqlDDL returns column definitions with the given text and float types.
// The key columns form the primary key.
func sqlDDL(kind Kind, textType, floatType string) string {
	keys := kind.KeyColumns()
	defs := make([]string, 0, len(keys)+model.NumRaces+1)
	for _, k := range keys {
		defs = append(defs, k+" "+textType+" NOT NULL")
	}
	for _, c := range model.RaceColumns() {
		defs = append(defs, c+" "+floatType)
	}
	defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	return strings.Join(defs, ", ")
}

// sqlRow flattens one table row for insertion. NaN is stored as NULL.
func sqlRow(kind Kind, key string, v model.ProbabilityVector) []any {
	fields := SplitKey(kind, key)
	row := make([]any, 0, len(fields)+model.NumRaces)
	for _, f := range fields {
		row = append(row, f)
	}
	for _, p := range v {
		if math.IsNaN(p) {
			row = append(row, nil)
			continue
		}
		row = append(row, p)
	}
	return row
}

// vectorFromNullable turns scanned nullable floats into a vector. NULL
// becomes NaN.
func vectorFromNullable(vals [model.NumRaces]*float64) model.ProbabilityVector {
	var v model.ProbabilityVector
	for i, p := range vals {
		if p == nil {
			v[i] = math.NaN()
			continue
		}
		v[i] = *p
	}
	return v
}
