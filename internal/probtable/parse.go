package probtable

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/model"
)

// suppressed marks census cells withheld for disclosure avoidance.
const suppressed = "(S)"

// bom is stripped from the first header cell of UTF-8 exports.
const bom = "\ufeff"

// rowParser maps a source header onto key and race column positions.
type rowParser struct {
	kind   Kind
	keyIdx []int
	raceIx [model.NumRaces]int
	scale  [model.NumRaces]float64
}

// newRowParser resolves the header. Extra columns (rank, count, ...) are
// ignored. A canonical race column wins over its census percent alias.
func newRowParser(kind Kind, header []string) (*rowParser, error) {
	p := &rowParser{kind: kind}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, bom)))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}

	for _, name := range kind.KeyColumns() {
		idx, ok := cols[name]
		if !ok {
			return nil, eris.Wrapf(ErrMissingColumn, "%s: key column %q", kind, name)
		}
		p.keyIdx = append(p.keyIdx, idx)
	}

	var found [model.NumRaces]bool
	var alias [model.NumRaces]bool
	for i, h := range header {
		race, pct, ok := model.ParseRaceColumn(strings.TrimPrefix(h, bom))
		if !ok {
			continue
		}
		if found[race] && (pct || !alias[race]) {
			continue
		}
		found[race] = true
		alias[race] = pct
		p.raceIx[race] = i
		p.scale[race] = 1
		if pct {
			p.scale[race] = 0.01
		}
	}
	for _, r := range model.Races {
		if !found[r] {
			return nil, eris.Wrapf(ErrMissingColumn, "%s: race column %q", kind, r.Column())
		}
	}
	return p, nil
}

// parse converts one source row. line is 1-based and used in errors only.
func (p *rowParser) parse(row []string, line int) (string, model.ProbabilityVector, error) {
	fields := make([]string, len(p.keyIdx))
	for i, idx := range p.keyIdx {
		if idx < len(row) {
			fields[i] = row[idx]
		}
	}
	key, err := TableKey(p.kind, fields)
	if err != nil {
		return "", model.ProbabilityVector{}, err
	}

	var v model.ProbabilityVector
	for r, idx := range p.raceIx {
		var cell string
		if idx < len(row) {
			cell = row[idx]
		}
		f, err := parseCell(cell)
		if err != nil {
			return "", v, eris.Wrapf(err, "probtable: %s line %d column %s", p.kind, line, model.RaceCategory(r).Column())
		}
		v[r] = f * p.scale[r]
	}
	return key, v, nil
}

// parseCell reads a probability. Blank and suppressed cells are NaN.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == suppressed {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %q", s)
	}
	return f, nil
}
