// Package normalize canonicalizes raw surnames, first names, ZCTAs and census
// tract triples into probability-table lookup keys.
//
// Names follow Word et al. (2007): upper-case, drop a trailing generational
// suffix (JR, SR, III, IV), then strip whitespace, ASCII punctuation and
// digits. Every function here is pure and idempotent.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ZCTALength is the width ZCTA keys are padded to.
const ZCTALength = 5

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// suffixPatterns are applied in order, each at most once, to the upper-cased
// name before character stripping. A suffix must be separated from the name
// by whitespace or a comma so "DAVISJR" survives and normalization stays
// idempotent. Trailing dots, commas and whitespace are part of the suffix.
var suffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[\s,]+J\.*R[\s,.]*$`),
	regexp.MustCompile(`[\s,]+S\.*R[\s,.]*$`),
	regexp.MustCompile(`[\s,]+III[\s,.]*$`),
	regexp.MustCompile(`[\s,]+IV[\s,.]*$`),
}

// Name normalizes a surname or first name. An empty string is a valid
// (unmatchable) result; the literal "NAN" is an ordinary name.
func Name(raw string) string {
	// cases.Caser is stateful, so one per call.
	s := cases.Upper(language.Und).String(raw)
	for _, re := range suffixPatterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r >= '0' && r <= '9':
			return -1
		case r <= unicode.MaxASCII && strings.ContainsRune(asciiPunctuation, r):
			return -1
		}
		return r
	}, s)
}

// NameValue normalizes an untyped cell. nil is treated as the empty string.
func NameValue(v any) string {
	if v == nil {
		return ""
	}
	return Name(cast.ToString(v))
}

// Names normalizes a slice of names, preserving order and length.
func Names(raw []string) []string {
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = Name(s)
	}
	return out
}

// ZCTA trims surrounding whitespace and left-pads with '0' to five
// characters. Longer values are returned unchanged and simply fail to match.
func ZCTA(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= ZCTALength {
		return s
	}
	return strings.Repeat("0", ZCTALength-len(s)) + s
}

// ZCTAValue coerces an untyped cell (int, float, string) to a ZCTA key.
func ZCTAValue(v any) string {
	if v == nil {
		return ZCTA("")
	}
	return ZCTA(cast.ToString(v))
}

// ZCTAs normalizes a slice of ZCTAs, preserving order and length.
func ZCTAs(raw []string) []string {
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = ZCTA(s)
	}
	return out
}
