package model

import (
	"strconv"
)

// InputRecord is one person's raw proxy values. Which fields are read
// depends on the model variant.
type InputRecord struct {
	Surname   string    `json:"surname,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	ZCTA      string    `json:"zcta,omitempty"`
	Tract     [3]string `json:"tract,omitempty"` // state, county, tract
}

// ResultRecord echoes the identifiers used for one input row alongside the
// computed probabilities.
type ResultRecord struct {
	IDs           []string          `json:"ids"`
	Probabilities ProbabilityVector `json:"-"`
}

// ResultSet is the output of one batch. Records[i] corresponds to input i.
type ResultSet struct {
	IDColumns []string
	Records   []ResultRecord
}

// NewResultSet assembles a ResultSet from identifier columns and a
// probability column. Every id column and the probability column must have
// the same length; callers check this before computing.
func NewResultSet(idColumns []string, ids [][]string, probs []ProbabilityVector) *ResultSet {
	rs := &ResultSet{
		IDColumns: idColumns,
		Records:   make([]ResultRecord, len(probs)),
	}
	for i := range probs {
		row := make([]string, len(ids))
		for c := range ids {
			row[c] = ids[c][i]
		}
		rs.Records[i] = ResultRecord{IDs: row, Probabilities: probs[i]}
	}
	return rs
}

// Len returns the number of records.
func (rs *ResultSet) Len() int {
	return len(rs.Records)
}

// Header returns the identifier columns followed by the six race columns.
func (rs *ResultSet) Header() []string {
	h := make([]string, 0, len(rs.IDColumns)+NumRaces)
	h = append(h, rs.IDColumns...)
	return append(h, RaceColumns()...)
}

// MissingCount returns how many records carry a MISSING vector.
func (rs *ResultSet) MissingCount() int {
	n := 0
	for _, r := range rs.Records {
		if r.Probabilities.IsMissing() {
			n++
		}
	}
	return n
}

// Probabilities returns the probability column in record order.
func (rs *ResultSet) Probabilities() []ProbabilityVector {
	out := make([]ProbabilityVector, len(rs.Records))
	for i, r := range rs.Records {
		out[i] = r.Probabilities
	}
	return out
}

// Rows renders every record as strings for tabular writers, rounding to
// precision places (negative keeps full precision). MISSING renders as an
// empty cell.
func (rs *ResultSet) Rows(precision int) [][]string {
	rows := make([][]string, len(rs.Records))
	for i, r := range rs.Records {
		row := make([]string, 0, len(r.IDs)+NumRaces)
		row = append(row, r.IDs...)
		if r.Probabilities.IsMissing() {
			for range NumRaces {
				row = append(row, "")
			}
			rows[i] = row
			continue
		}
		v := r.Probabilities.Round(precision)
		for _, p := range v {
			row = append(row, strconv.FormatFloat(p, 'f', precision, 64))
		}
		rows[i] = row
	}
	return rows
}
