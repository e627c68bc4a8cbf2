// Package pattern holds the lexical patterns shared by the response parser.
//
// The remote model's output is plain text with no fixed grammar, so extraction
// is expressed as pattern application. Keeping the expressions here (rather
// than inline at every call site) means a formatting change on the remote side
// is fixed in one place.
package pattern

import (
	"regexp"
	"strconv"
)

// Number matches a numeric literal: optional sign, digits with an optional
// fractional part (a leading-dot decimal is accepted), and an optional
// scientific-notation exponent.
const Number = `[+-]?\d*\.?\d+(?:[Ee][+-]?\d+)?`

var (
	// GibbsLine matches a "total gibbs ... : <number>" summary line,
	// case-insensitively, tolerating wording between the label and the
	// separator as long as it contains no ':' or '='.
	GibbsLine = regexp.MustCompile(`(?mi)total\s+gibbs[^:=\n]*[:=]\s*(` + Number + `)`)

	// PHLine matches a standalone "pH" token followed by a separator and a
	// number. The \b guards keep "graph" or "phase" from matching.
	PHLine = regexp.MustCompile(`(?mi)\bph\b[^:=\n]*[:=]\s*(` + Number + `)`)

	// TableLine matches an entire trimmed line of the form "<name> <number>".
	// Names may contain letters, digits and the charge/bracket characters
	// used by chemical species labels (H+, SO42-, (NH4)2SO4, ...). Lines with
	// trailing tokens beyond the number do not match.
	TableLine = regexp.MustCompile(`^([A-Za-z0-9_+\-()\[\]/]+)\s+(` + Number + `)$`)

	reNumber = regexp.MustCompile(`^` + Number + `$`)
)

// IsNumber reports whether s is exactly one numeric literal.
func IsNumber(s string) bool {
	return reNumber.MatchString(s)
}

// ParseFloat parses a matched numeric literal.
//
// The patterns above are strictly narrower than strconv's float syntax, so a
// captured group always parses; the error return exists for captures obtained
// elsewhere (e.g. a pH value with stray characters).
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// FormatFloat renders v the way form fields and exports expect: the shortest
// decimal string that round-trips ("298.15", "1.23e-07").
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
