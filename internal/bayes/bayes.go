// Package bayes combines per-proxy probability vectors with Bayes' rule.
//
// For each record and race r the joint is the product of every factor's
// entry for r; the posterior is the joint divided by its sum over races.
// Records are independent: there is no cross-row state, and a MISSING
// factor or a zero or non-finite denominator yields a MISSING posterior for
// that record only.
package bayes

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/model"
)

var (
	// ErrNoFactors is returned when Combine is called without factors.
	ErrNoFactors = eris.New("bayes: no factors")
	// ErrLengthMismatch is returned when factor columns differ in length.
	ErrLengthMismatch = eris.New("bayes: factor length mismatch")
)

// Posterior combines one record's factors. The first factor is usually a
// race-given prior and the rest identifier-given-race likelihoods, but the
// arithmetic does not depend on order.
func Posterior(factors ...model.ProbabilityVector) model.ProbabilityVector {
	if len(factors) == 0 {
		return model.MissingVector()
	}
	joint := factors[0]
	if joint.IsMissing() {
		return model.MissingVector()
	}
	for _, f := range factors[1:] {
		if f.IsMissing() {
			return model.MissingVector()
		}
		joint = joint.Mul(f)
	}
	return joint.Normalize()
}

// Combine applies Posterior row by row across aligned factor columns. Length
// is checked before any row is computed.
func Combine(factors ...[]model.ProbabilityVector) ([]model.ProbabilityVector, error) {
	if len(factors) == 0 {
		return nil, ErrNoFactors
	}
	n := len(factors[0])
	for _, f := range factors[1:] {
		if len(f) != n {
			return nil, eris.Wrap(ErrLengthMismatch, describeLengths(factors))
		}
	}

	out := make([]model.ProbabilityVector, n)
	row := make([]model.ProbabilityVector, len(factors))
	for i := range n {
		for j, f := range factors {
			row[j] = f[i]
		}
		out[i] = Posterior(row...)
	}
	return out, nil
}

func describeLengths(factors [][]model.ProbabilityVector) string {
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = fmt.Sprintf("factor %d length: %d", i, len(f))
	}
	return strings.Join(parts, ", ")
}
