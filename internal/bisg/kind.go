package bisg

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/probtable"
)

// Kind names a model variant.
type Kind int

const (
	FirstName Kind = iota
	Surname
	Geocode
	Surgeo
	BIFSG
)

var kindNames = [...]string{
	FirstName: "first",
	Surname:   "sur",
	Geocode:   "geo",
	Surgeo:    "surgeo",
	BIFSG:     "bifsg",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds lists every variant.
func Kinds() []Kind {
	return []Kind{FirstName, Surname, Geocode, Surgeo, BIFSG}
}

// ParseKind accepts the CLI type names first, sur, geo, bifsg and surgeo.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, eris.Errorf("bisg: unknown model type %q (want first, sur, geo, bifsg or surgeo)", s)
}

// GeoLevel selects the geography key shape.
type GeoLevel int

const (
	ZCTA GeoLevel = iota
	Tract
)

func (g GeoLevel) String() string {
	if g == Tract {
		return "tract"
	}
	return "zcta"
}

// ParseGeoLevel accepts "zcta" (or empty) and "tract".
func ParseGeoLevel(s string) (GeoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zcta", "zcta5":
		return ZCTA, nil
	case "tract":
		return Tract, nil
	}
	return 0, eris.Errorf("bisg: unknown geo level %q (want zcta or tract)", s)
}

// Spec identifies a model configuration. Level is ignored by variants that
// take no geography.
type Spec struct {
	Kind  Kind
	Level GeoLevel
}

// UsesGeo reports whether the variant reads a geography proxy.
func (s Spec) UsesGeo() bool {
	switch s.Kind {
	case Geocode, Surgeo, BIFSG:
		return true
	}
	return false
}

func (s Spec) String() string {
	if s.UsesGeo() {
		return s.Kind.String() + "/" + s.Level.String()
	}
	return s.Kind.String()
}

// Requirements returns the table kinds a variant needs, in factor order.
func (s Spec) Requirements() []probtable.Kind {
	switch s.Kind {
	case FirstName:
		return []probtable.Kind{probtable.RaceGivenFirstName}
	case Surname:
		return []probtable.Kind{probtable.RaceGivenSurname}
	case Geocode:
		if s.Level == Tract {
			return []probtable.Kind{probtable.RaceGivenTract}
		}
		return []probtable.Kind{probtable.RaceGivenZCTA}
	case Surgeo:
		return []probtable.Kind{probtable.RaceGivenSurname, s.geoGivenRace()}
	case BIFSG:
		return []probtable.Kind{probtable.RaceGivenSurname, probtable.FirstNameGivenRace, s.geoGivenRace()}
	}
	return nil
}

func (s Spec) geoGivenRace() probtable.Kind {
	if s.Level == Tract {
		return probtable.TractGivenRace
	}
	return probtable.ZCTAGivenRace
}

// IDColumns returns the identifier columns a variant echoes in its results.
func (s Spec) IDColumns() []string {
	var geo []string
	if s.Level == Tract {
		geo = []string{"state", "county", "tract"}
	} else {
		geo = []string{"zcta5"}
	}
	switch s.Kind {
	case FirstName:
		return []string{"first_name"}
	case Surname:
		return []string{"name"}
	case Geocode:
		return geo
	case Surgeo:
		return append(geo, "name")
	case BIFSG:
		return append(geo, "first_name", "surname")
	}
	return nil
}

// MissingPolicy controls what an unresolvable surname contributes.
type MissingPolicy int

const (
	// PolicyNaN propagates MISSING.
	PolicyNaN MissingPolicy = iota
	// PolicyNational substitutes model.NationalFallback, normalized.
	PolicyNational
)

func (p MissingPolicy) String() string {
	if p == PolicyNational {
		return "national"
	}
	return "nan"
}

// ParseMissingPolicy accepts "nan" (or empty) and "national".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan":
		return PolicyNaN, nil
	case "national":
		return PolicyNational, nil
	}
	return 0, eris.Errorf("bisg: unknown missing policy %q (want nan or national)", s)
}
