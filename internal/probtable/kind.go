// Package probtable holds the immutable keyed probability tables the
// estimation engine looks identifiers up in, and the loaders that build them
// from CSV, XLSX, msgpack snapshots, SQLite and PostgreSQL.
package probtable

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/normalize"
)

// Proxy is the identifier type a table is keyed by.
type Proxy int

const (
	Surname Proxy = iota
	FirstName
	ZCTA
	Tract
)

var proxyNames = map[Proxy]string{
	Surname:   "surname",
	FirstName: "first_name",
	ZCTA:      "zcta",
	Tract:     "tract",
}

func (p Proxy) String() string {
	if s, ok := proxyNames[p]; ok {
		return s
	}
	return "unknown"
}

// Orientation is the conditional direction of a table's rows.
type Orientation int

const (
	// RaceGiven rows hold P(race | identifier) and sum to 1 across races.
	RaceGiven Orientation = iota
	// GivenRace rows hold P(identifier | race); columns sum to 1 across keys.
	GivenRace
)

func (o Orientation) String() string {
	switch o {
	case RaceGiven:
		return "race_given"
	case GivenRace:
		return "given_race"
	}
	return "unknown"
}

// Kind identifies a table by proxy and orientation.
type Kind struct {
	Proxy       Proxy
	Orientation Orientation
}

var (
	RaceGivenSurname   = Kind{Surname, RaceGiven}
	RaceGivenFirstName = Kind{FirstName, RaceGiven}
	FirstNameGivenRace = Kind{FirstName, GivenRace}
	RaceGivenZCTA      = Kind{ZCTA, RaceGiven}
	ZCTAGivenRace      = Kind{ZCTA, GivenRace}
	RaceGivenTract     = Kind{Tract, RaceGiven}
	TractGivenRace     = Kind{Tract, GivenRace}
)

var defaultFiles = map[Kind]string{
	RaceGivenSurname:   "prob_race_given_surname_2010.csv",
	RaceGivenFirstName: "prob_race_given_first_name_harvard.csv",
	FirstNameGivenRace: "prob_first_name_given_race_harvard.csv",
	RaceGivenZCTA:      "prob_race_given_zcta_2010.csv",
	ZCTAGivenRace:      "prob_zcta_given_race_2010.csv",
	RaceGivenTract:     "prob_race_given_tract_2010.csv",
	TractGivenRace:     "prob_tract_given_race_2010.csv",
}

// AllKinds returns every supported table kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		RaceGivenSurname,
		RaceGivenFirstName,
		FirstNameGivenRace,
		RaceGivenZCTA,
		ZCTAGivenRace,
		RaceGivenTract,
		TractGivenRace,
	}
}

// String returns the snake-case name, which doubles as the SQL table name,
// e.g. "race_given_surname" or "zcta_given_race".
func (k Kind) String() string {
	if k.Orientation == RaceGiven {
		return "race_given_" + k.Proxy.String()
	}
	return k.Proxy.String() + "_given_race"
}

// Label returns the conditional notation, e.g. "race|surname".
func (k Kind) Label() string {
	if k.Orientation == RaceGiven {
		return "race|" + k.Proxy.String()
	}
	return k.Proxy.String() + "|race"
}

// Valid reports whether k is one of AllKinds.
func (k Kind) Valid() bool {
	_, ok := defaultFiles[k]
	return ok
}

// DefaultFile returns the conventional file name for the kind.
func (k Kind) DefaultFile() string {
	return defaultFiles[k]
}

// KeyColumns returns the header names that form the table key.
func (k Kind) KeyColumns() []string {
	switch k.Proxy {
	case ZCTA:
		return []string{"zcta5"}
	case Tract:
		return []string{"state", "county", "tract"}
	default:
		return []string{"name"}
	}
}

// ParseKind accepts either String or Label form.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds() {
		if s == k.String() || s == k.Label() {
			return k, nil
		}
	}
	return Kind{}, eris.Errorf("probtable: unknown table kind %q", s)
}

// TableKey builds the canonical key for one table row from its key column
// values. Names are trimmed, ZCTAs zero-padded to five characters and tract
// triples padded to census widths.
func TableKey(kind Kind, fields []string) (string, error) {
	want := len(kind.KeyColumns())
	if len(fields) != want {
		return "", eris.Errorf("probtable: %s key needs %d fields, got %d", kind, want, len(fields))
	}
	switch kind.Proxy {
	case ZCTA:
		return normalize.ZCTA(fields[0]), nil
	case Tract:
		return normalize.TableTract(fields[0], fields[1], fields[2]).Key(), nil
	default:
		return strings.TrimSpace(fields[0]), nil
	}
}

// SplitKey reverses TableKey into key column values.
func SplitKey(kind Kind, key string) []string {
	if kind.Proxy == Tract {
		return strings.SplitN(key, "|", 3)
	}
	return []string{key}
}
