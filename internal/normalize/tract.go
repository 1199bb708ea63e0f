package normalize

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
)

// ErrTractArity is returned when a tract input does not have exactly three
// positional fields.
var ErrTractArity = eris.New("normalize: tract input must have exactly 3 fields (state, county, tract)")

// Tract is a census tract key triple.
type Tract struct {
	State  string
	County string
	Tract  string
}

// TractColumns are the fixed key names assigned positionally to tract input.
var TractColumns = []string{"state", "county", "tract"}

// Key returns the lookup key for the triple.
func (t Tract) Key() string {
	return t.State + "|" + t.County + "|" + t.Tract
}

// Fields returns the triple in positional order.
func (t Tract) Fields() []string {
	return []string{t.State, t.County, t.Tract}
}

// TractFromFields builds a Tract from three positional values, whatever the
// source columns were called. Values are coerced to strings and trimmed but
// not padded: padding belongs to the table key.
func TractFromFields(fields []string) (Tract, error) {
	if len(fields) != 3 {
		return Tract{}, eris.Wrapf(ErrTractArity, "got %d fields", len(fields))
	}
	return Tract{
		State:  strings.TrimSpace(fields[0]),
		County: strings.TrimSpace(fields[1]),
		Tract:  strings.TrimSpace(fields[2]),
	}, nil
}

// TractFromValues is TractFromFields for untyped cells.
func TractFromValues(values []any) (Tract, error) {
	fields := make([]string, len(values))
	for i, v := range values {
		if v != nil {
			fields[i] = cast.ToString(v)
		}
	}
	return TractFromFields(fields)
}

// TableTract pads a tract triple to census widths (state 2, county 3,
// tract 6). Used only when building table keys.
func TableTract(state, county, tract string) Tract {
	return Tract{
		State:  PadFIPS(state, 2),
		County: PadFIPS(county, 3),
		Tract:  PadFIPS(tract, 6),
	}
}

// PadFIPS left-pads a FIPS code with zeros to the given width. Empty codes
// stay empty.
func PadFIPS(code string, width int) string {
	code = strings.TrimSpace(code)
	if code == "" || len(code) >= width {
		return code
	}
	return strings.Repeat("0", width-len(code)) + code
}
