package bisg

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/model"
	"github.com/sells-group/surgeo/internal/normalize"
)

// Batch holds column-oriented raw inputs. Each model reads only the columns
// it needs; the rest may be nil.
type Batch struct {
	Surnames   []string
	FirstNames []string
	ZCTAs      []string
	Tracts     []normalize.Tract
}

// Geo returns the geography columns.
func (b Batch) Geo() GeoInput {
	return GeoInput{ZCTAs: b.ZCTAs, Tracts: b.Tracts}
}

// BatchFromRecords pivots row-oriented records into a Batch. Every column
// has len(recs) entries.
func BatchFromRecords(recs []model.InputRecord) Batch {
	b := Batch{
		Surnames:   make([]string, len(recs)),
		FirstNames: make([]string, len(recs)),
		ZCTAs:      make([]string, len(recs)),
		Tracts:     make([]normalize.Tract, len(recs)),
	}
	for i, r := range recs {
		b.Surnames[i] = r.Surname
		b.FirstNames[i] = r.FirstName
		b.ZCTAs[i] = r.ZCTA
		b.Tracts[i] = normalize.Tract{State: r.Tract[0], County: r.Tract[1], Tract: r.Tract[2]}
	}
	return b
}

// Run dispatches a batch to whichever variant m is.
func Run(m Model, b Batch) (*model.ResultSet, error) {
	switch v := m.(type) {
	case *SurnameModel:
		return v.GetProbabilities(b.Surnames)
	case *FirstNameModel:
		return v.GetProbabilities(b.FirstNames)
	case *GeocodeModel:
		return v.GetProbabilities(b.Geo())
	case *SurgeoModel:
		return v.GetProbabilities(b.Surnames, b.Geo())
	case *BIFSGModel:
		return v.GetProbabilities(b.FirstNames, b.Surnames, b.Geo())
	case nil:
		return nil, eris.New("bisg: nil model")
	}
	return nil, eris.Errorf("bisg: unsupported model %T", m)
}
