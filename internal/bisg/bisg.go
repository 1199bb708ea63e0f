// Package bisg implements Bayesian Improved Surname Geocoding and its
// variants as a closed set of model types.
//
// Single-proxy models (SurnameModel, FirstNameModel, GeocodeModel) return the
// race-given-identifier row unchanged. SurgeoModel (BISG) and BIFSGModel
// combine a race-given-surname prior with identifier-given-race likelihoods
// through package bayes. Every model is built once from loaded tables by New
// and is safe for concurrent use.
package bisg

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/bayes"
	"github.com/sells-group/surgeo/internal/join"
	"github.com/sells-group/surgeo/internal/model"
	"github.com/sells-group/surgeo/internal/normalize"
	"github.com/sells-group/surgeo/internal/probtable"
)

var (
	// ErrLengthMismatch is matched by errors.Is for every *LengthError.
	ErrLengthMismatch = eris.New("bisg: input length mismatch")
	// ErrMissingTable is returned by New when a required table is absent.
	ErrMissingTable = eris.New("bisg: missing required table")
)

// LengthError reports input sequences of different lengths. It is returned
// before any row is computed.
type LengthError struct {
	Inputs  []string
	Lengths []int
}

func (e *LengthError) Error() string {
	var sb strings.Builder
	sb.WriteString("Length mismatch.")
	for i, name := range e.Inputs {
		fmt.Fprintf(&sb, " %s length: %d.", name, e.Lengths[i])
	}
	return sb.String()
}

// Is makes errors.Is(err, ErrLengthMismatch) hold.
func (e *LengthError) Is(target error) bool {
	return target == ErrLengthMismatch
}

type namedLen struct {
	name string
	n    int
}

func checkLengths(inputs ...namedLen) error {
	for _, in := range inputs[1:] {
		if in.n != inputs[0].n {
			e := &LengthError{}
			for _, x := range inputs {
				e.Inputs = append(e.Inputs, x.name)
				e.Lengths = append(e.Lengths, x.n)
			}
			return e
		}
	}
	return nil
}

// Tables holds loaded tables by kind.
type Tables map[probtable.Kind]*probtable.Table

// Option configures New.
type Option func(*options)

type options struct {
	policy MissingPolicy
}

// WithMissingPolicy selects the surname missing-data policy. The national
// vector is normalized before use, so surname-only rows still sum to 1.
func WithMissingPolicy(p MissingPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

func (o options) surnameJoin() []join.Option {
	if o.policy == PolicyNational {
		return []join.Option{join.WithFallback(model.NationalFallback.Normalize())}
	}
	return nil
}

// Model is implemented only by the variant types in this package.
type Model interface {
	Spec() Spec
	sealed()
}

// GeoInput carries a geography column at either level. Only the field for
// the model's level is read.
type GeoInput struct {
	ZCTAs  []string
	Tracts []normalize.Tract
}

func (g GeoInput) len(level GeoLevel) int {
	if level == Tract {
		return len(g.Tracts)
	}
	return len(g.ZCTAs)
}

// ids returns the echoed identifier columns for the level.
func (g GeoInput) ids(level GeoLevel, col join.Column) [][]string {
	if level != Tract {
		return [][]string{col.Keys}
	}
	out := [][]string{make([]string, len(g.Tracts)), make([]string, len(g.Tracts)), make([]string, len(g.Tracts))}
	for i, t := range g.Tracts {
		out[0][i], out[1][i], out[2][i] = t.State, t.County, t.Tract
	}
	return out
}

func lookupGeo(level GeoLevel, g GeoInput, t *probtable.Table) join.Column {
	if level == Tract {
		return join.Tracts(g.Tracts, t)
	}
	return join.ZCTAs(g.ZCTAs, t)
}

// New builds the model for spec from tables. Each required kind must be
// present and of the right kind; extra tables are ignored.
func New(spec Spec, tables Tables, opts ...Option) (Model, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	req := spec.Requirements()
	if req == nil {
		return nil, eris.Errorf("bisg: unknown model kind %d", spec.Kind)
	}
	got := make([]*probtable.Table, len(req))
	for i, kind := range req {
		t, ok := tables[kind]
		if !ok || t == nil {
			return nil, eris.Wrapf(ErrMissingTable, "%s needs %s", spec, kind)
		}
		if err := t.Expect(kind); err != nil {
			return nil, eris.Wrapf(err, "bisg: %s", spec)
		}
		got[i] = t
	}

	switch spec.Kind {
	case FirstName:
		return &FirstNameModel{raceGivenFirstName: got[0]}, nil
	case Surname:
		return &SurnameModel{raceGivenSurname: got[0], opts: o}, nil
	case Geocode:
		return &GeocodeModel{level: spec.Level, raceGivenGeo: got[0]}, nil
	case Surgeo:
		return &SurgeoModel{level: spec.Level, raceGivenSurname: got[0], geoGivenRace: got[1], opts: o}, nil
	case BIFSG:
		return &BIFSGModel{level: spec.Level, raceGivenSurname: got[0], firstNameGivenRace: got[1], geoGivenRace: got[2], opts: o}, nil
	}
	return nil, eris.Errorf("bisg: unknown model kind %d", spec.Kind)
}

// SurnameModel returns P(race | surname).
type SurnameModel struct {
	raceGivenSurname *probtable.Table
	opts             options
}

func (*SurnameModel) sealed() {}

// Spec implements Model.
func (m *SurnameModel) Spec() Spec { return Spec{Kind: Surname} }

// GetProbabilities looks up each surname.
func (m *SurnameModel) GetProbabilities(surnames []string) (*model.ResultSet, error) {
	col := join.Names(surnames, m.raceGivenSurname, m.opts.surnameJoin()...)
	return model.NewResultSet(m.Spec().IDColumns(), [][]string{col.Keys}, col.Vectors), nil
}

// FirstNameModel returns P(race | first name).
type FirstNameModel struct {
	raceGivenFirstName *probtable.Table
}

func (*FirstNameModel) sealed() {}

// Spec implements Model.
func (m *FirstNameModel) Spec() Spec { return Spec{Kind: FirstName} }

// GetProbabilities looks up each first name.
func (m *FirstNameModel) GetProbabilities(firstNames []string) (*model.ResultSet, error) {
	col := join.Names(firstNames, m.raceGivenFirstName)
	return model.NewResultSet(m.Spec().IDColumns(), [][]string{col.Keys}, col.Vectors), nil
}

// GeocodeModel returns P(race | geography) at one level.
type GeocodeModel struct {
	level        GeoLevel
	raceGivenGeo *probtable.Table
}

func (*GeocodeModel) sealed() {}

// Spec implements Model.
func (m *GeocodeModel) Spec() Spec { return Spec{Kind: Geocode, Level: m.level} }

// GetProbabilities looks up each geography.
func (m *GeocodeModel) GetProbabilities(geo GeoInput) (*model.ResultSet, error) {
	col := lookupGeo(m.level, geo, m.raceGivenGeo)
	return model.NewResultSet(m.Spec().IDColumns(), geo.ids(m.level, col), col.Vectors), nil
}

// SurgeoModel is BISG: P(race | surname) * P(geo | race), normalized.
type SurgeoModel struct {
	level            GeoLevel
	raceGivenSurname *probtable.Table
	geoGivenRace     *probtable.Table
	opts             options
}

func (*SurgeoModel) sealed() {}

// Spec implements Model.
func (m *SurgeoModel) Spec() Spec { return Spec{Kind: Surgeo, Level: m.level} }

// GetProbabilities combines surname and geography evidence per row.
func (m *SurgeoModel) GetProbabilities(surnames []string, geo GeoInput) (*model.ResultSet, error) {
	if err := checkLengths(
		namedLen{"Name", len(surnames)},
		namedLen{"Geo", geo.len(m.level)},
	); err != nil {
		return nil, err
	}

	sur := join.Names(surnames, m.raceGivenSurname, m.opts.surnameJoin()...)
	g := lookupGeo(m.level, geo, m.geoGivenRace)
	post, err := bayes.Combine(sur.Vectors, g.Vectors)
	if err != nil {
		return nil, err
	}
	ids := append(geo.ids(m.level, g), sur.Keys)
	return model.NewResultSet(m.Spec().IDColumns(), ids, post), nil
}

// BIFSGModel is BISG with a first-name likelihood:
// P(race | surname) * P(first name | race) * P(geo | race), normalized.
type BIFSGModel struct {
	level              GeoLevel
	raceGivenSurname   *probtable.Table
	firstNameGivenRace *probtable.Table
	geoGivenRace       *probtable.Table
	opts               options
}

func (*BIFSGModel) sealed() {}

// Spec implements Model.
func (m *BIFSGModel) Spec() Spec { return Spec{Kind: BIFSG, Level: m.level} }

// GetProbabilities combines first name, surname and geography evidence.
func (m *BIFSGModel) GetProbabilities(firstNames, surnames []string, geo GeoInput) (*model.ResultSet, error) {
	if err := checkLengths(
		namedLen{"First name", len(firstNames)},
		namedLen{"Surname", len(surnames)},
		namedLen{"Geo", geo.len(m.level)},
	); err != nil {
		return nil, err
	}

	sur := join.Names(surnames, m.raceGivenSurname, m.opts.surnameJoin()...)
	first := join.Names(firstNames, m.firstNameGivenRace)
	g := lookupGeo(m.level, geo, m.geoGivenRace)
	post, err := bayes.Combine(sur.Vectors, first.Vectors, g.Vectors)
	if err != nil {
		return nil, err
	}
	ids := append(geo.ids(m.level, g), first.Keys, sur.Keys)
	return model.NewResultSet(m.Spec().IDColumns(), ids, post), nil
}
