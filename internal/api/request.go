package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/bisg"
	"github.com/sells-group/surgeo/internal/model"
	"github.com/sells-group/surgeo/internal/normalize"
)

// EstimateRequest is the body of POST /v1/{type}. Identifiers are given
// either as parallel columns or as Records, not both.
type EstimateRequest struct {
	Surnames   []string     `json:"surnames" validate:"omitempty,max=1000000"`
	FirstNames []string     `json:"first_names" validate:"omitempty,max=1000000"`
	ZCTAs      []string     `json:"zctas" validate:"omitempty,max=1000000"`
	Tracts     [][]string   `json:"tracts" validate:"omitempty,max=1000000,dive,len=3"`
	Records    []RecordItem `json:"records" validate:"omitempty,max=1000000,dive"`
	GeoLevel   string       `json:"geo_level" validate:"omitempty,oneof=zcta zcta5 tract"`
}

// RecordItem is one row-oriented input.
type RecordItem struct {
	Surname   string   `json:"surname"`
	FirstName string   `json:"first_name"`
	ZCTA      string   `json:"zcta"`
	Tract     []string `json:"tract" validate:"omitempty,len=3"`
}

var validate = validator.New()

// Validate checks field constraints.
func (r *EstimateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return eris.Wrap(err, "api: invalid request")
	}
	if len(r.Records) > 0 && (len(r.Surnames) > 0 || len(r.FirstNames) > 0 || len(r.ZCTAs) > 0 || len(r.Tracts) > 0) {
		return eris.New("api: invalid request: records cannot be combined with column arrays")
	}
	return nil
}

// Level returns the requested geography level.
func (r *EstimateRequest) Level() (bisg.GeoLevel, error) {
	return bisg.ParseGeoLevel(r.GeoLevel)
}

// Size returns the longest input column, used for the batch limit.
func (r *EstimateRequest) Size() int {
	n := len(r.Records)
	for _, l := range []int{len(r.Surnames), len(r.FirstNames), len(r.ZCTAs), len(r.Tracts)} {
		n = max(n, l)
	}
	return n
}

// Batch converts the request for spec. Columns the model reads must be
// present; their lengths are checked by the model itself.
func (r *EstimateRequest) Batch(spec bisg.Spec) (bisg.Batch, error) {
	if len(r.Records) > 0 {
		recs := make([]model.InputRecord, len(r.Records))
		for i, item := range r.Records {
			recs[i] = model.InputRecord{Surname: item.Surname, FirstName: item.FirstName, ZCTA: item.ZCTA}
			if len(item.Tract) > 0 {
				tr, err := normalize.TractFromFields(item.Tract)
				if err != nil {
					return bisg.Batch{}, eris.Wrapf(err, "api: records[%d].tract", i)
				}
				recs[i].Tract = [3]string{tr.State, tr.County, tr.Tract}
			}
		}
		return bisg.BatchFromRecords(recs), nil
	}

	b := bisg.Batch{Surnames: r.Surnames, FirstNames: r.FirstNames, ZCTAs: r.ZCTAs}
	for i, fields := range r.Tracts {
		tr, err := normalize.TractFromFields(fields)
		if err != nil {
			return bisg.Batch{}, eris.Wrapf(err, "api: tracts[%d]", i)
		}
		b.Tracts = append(b.Tracts, tr)
	}

	for _, need := range required(spec) {
		if need.n(b) == 0 {
			return bisg.Batch{}, eris.Errorf("api: invalid request: %s model needs %q", spec.Kind, need.field)
		}
	}
	return b, nil
}

type requirement struct {
	field string
	n     func(bisg.Batch) int
}

func required(spec bisg.Spec) []requirement {
	surnames := requirement{"surnames", func(b bisg.Batch) int { return len(b.Surnames) }}
	firstNames := requirement{"first_names", func(b bisg.Batch) int { return len(b.FirstNames) }}
	geo := requirement{"zctas", func(b bisg.Batch) int { return len(b.ZCTAs) }}
	if spec.Level == bisg.Tract {
		geo = requirement{"tracts", func(b bisg.Batch) int { return len(b.Tracts) }}
	}

	switch spec.Kind {
	case bisg.FirstName:
		return []requirement{firstNames}
	case bisg.Surname:
		return []requirement{surnames}
	case bisg.Geocode:
		return []requirement{geo}
	case bisg.Surgeo:
		return []requirement{surnames, geo}
	case bisg.BIFSG:
		return []requirement{firstNames, surnames, geo}
	}
	return nil
}

// Row is one result in the response. MISSING probabilities are null.
type Row struct {
	IDs           map[string]string   `json:"ids"`
	Probabilities map[string]*float64 `json:"probabilities"`
}

// EstimateResponse is the body returned by POST /v1/{type}.
type EstimateResponse struct {
	RequestID string   `json:"request_id"`
	Model     string   `json:"model"`
	Columns   []string `json:"columns"`
	Missing   int      `json:"missing"`
	Rows      []Row    `json:"rows"`
}

// newEstimateResponse renders rs, rounding to precision places (negative
// keeps full precision).
func newEstimateResponse(requestID string, spec bisg.Spec, rs *model.ResultSet, precision int) *EstimateResponse {
	resp := &EstimateResponse{
		RequestID: requestID,
		Model:     spec.String(),
		Columns:   rs.Header(),
		Missing:   rs.MissingCount(),
		Rows:      make([]Row, rs.Len()),
	}
	for i, rec := range rs.Records {
		ids := make(map[string]string, len(rs.IDColumns))
		for c, name := range rs.IDColumns {
			ids[name] = rec.IDs[c]
		}
		resp.Rows[i] = Row{IDs: ids, Probabilities: rec.Probabilities.Round(precision).Map()}
	}
	return resp
}
