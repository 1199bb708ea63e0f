package model

import (
	"math"
	"strings"
)

// RaceCategory is one of the six mutually exclusive race/ethnicity labels
// encoded by the census surname and geography files.
type RaceCategory int

const (
	Hispanic RaceCategory = iota
	White
	Black
	API  // Asian or Pacific Islander
	AIAN // American Indian or Alaska Native
	Multi
)

// NumRaces is the length of every ProbabilityVector.
const NumRaces = 6

// Races lists the categories in presentation order.
var Races = [NumRaces]RaceCategory{Hispanic, White, Black, API, AIAN, Multi}

var raceColumns = [NumRaces]string{"hispanic", "white", "black", "api", "ai", "multi"}

var raceNames = [NumRaces]string{
	"Hispanic",
	"White",
	"Black",
	"Asian or Pacific Islander",
	"American Indian or Alaska Native",
	"Multiracial",
}

// Column returns the output column name shared by every model variant.
func (r RaceCategory) Column() string {
	if r < 0 || int(r) >= NumRaces {
		return "unknown"
	}
	return raceColumns[r]
}

// String returns the human-readable label.
func (r RaceCategory) String() string {
	if r < 0 || int(r) >= NumRaces {
		return "unknown"
	}
	return raceNames[r]
}

// RaceColumns returns the six probability column names in presentation order.
func RaceColumns() []string {
	out := make([]string, NumRaces)
	copy(out, raceColumns[:])
	return out
}

// censusAliases maps the percent-valued column headers of the raw census
// surname file onto categories.
var censusAliases = map[string]RaceCategory{
	"pcthispanic": Hispanic,
	"pctwhite":    White,
	"pctblack":    Black,
	"pctapi":      API,
	"pctaian":     AIAN,
	"pct2prace":   Multi,
}

// ParseRaceColumn resolves a table header to a category. The second return
// reports whether the header is a census percent alias (values in 0-100).
func ParseRaceColumn(header string) (RaceCategory, bool, bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	for i, c := range raceColumns {
		if h == c {
			return RaceCategory(i), false, true
		}
	}
	if r, ok := censusAliases[h]; ok {
		return r, true, true
	}
	return 0, false, false
}

// ProbabilityVector holds one probability per RaceCategory, indexed by the
// category value. A vector containing NaN is MISSING.
type ProbabilityVector [NumRaces]float64

// MissingVector returns the sentinel MISSING vector (all NaN).
func MissingVector() ProbabilityVector {
	nan := math.NaN()
	return ProbabilityVector{nan, nan, nan, nan, nan, nan}
}

// NationalFallback is the fixed national distribution older releases
// substituted for surnames absent from the census list. The percentages are
// carried verbatim and sum to 1.016.
var NationalFallback = ProbabilityVector{.111, .705, .113, .070, .009, .008}

// IsMissing reports whether any entry is NaN.
func (v ProbabilityVector) IsMissing() bool {
	for _, p := range v {
		if math.IsNaN(p) {
			return true
		}
	}
	return false
}

// Get returns the probability for a category.
func (v ProbabilityVector) Get(r RaceCategory) float64 {
	return v[r]
}

// Sum adds all six entries.
func (v ProbabilityVector) Sum() float64 {
	var s float64
	for _, p := range v {
		s += p
	}
	return s
}

// Mul multiplies two vectors elementwise.
func (v ProbabilityVector) Mul(o ProbabilityVector) ProbabilityVector {
	var out ProbabilityVector
	for i := range v {
		out[i] = v[i] * o[i]
	}
	return out
}

// Normalize divides each entry by the vector sum. A MISSING input or a
// non-positive or non-finite sum yields MISSING.
func (v ProbabilityVector) Normalize() ProbabilityVector {
	if v.IsMissing() {
		return MissingVector()
	}
	s := v.Sum()
	if s <= 0 || math.IsInf(s, 0) {
		return MissingVector()
	}
	var out ProbabilityVector
	for i := range v {
		out[i] = v[i] / s
	}
	return out
}

// Round rounds every entry to the given number of decimal places. It is meant
// for presentation only. NaN entries stay NaN.
func (v ProbabilityVector) Round(places int) ProbabilityVector {
	if places < 0 {
		return v
	}
	scale := math.Pow(10, float64(places))
	var out ProbabilityVector
	for i, p := range v {
		out[i] = math.Round(p*scale) / scale
	}
	return out
}

// Map returns the vector keyed by output column name, with MISSING entries
// as nil so that JSON encodes them as null.
func (v ProbabilityVector) Map() map[string]*float64 {
	out := make(map[string]*float64, NumRaces)
	for i, c := range raceColumns {
		if math.IsNaN(v[i]) {
			out[c] = nil
			continue
		}
		p := v[i]
		out[c] = &p
	}
	return out
}
