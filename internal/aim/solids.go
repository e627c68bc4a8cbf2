package aim

// Ice is requested separately from the other solids on the model page
// ("equilibrate over ice?").
const Ice = "Ice"

// SolidPhases lists the solid-phase labels the model II page offers, in page
// order. Callers wanting "all solids" pass this slice (plus Ice if desired);
// the mapper matches labels case-insensitively against checkbox names,
// values and label text, so the exact punctuation here only needs to match
// what the page renders.
var SolidPhases = []string{
	"H2SO4 · H2O",
	"H2SO4 · 2H2O",
	"H2SO4 · 3H2O",
	"H2SO4 · 4H2O",
	"H2SO4 · 6.5H2O",
	"HNO3 · H2O",
	"HNO3 · 2H2O",
	"HNO3 · 3H2O",
	"(NH4)2SO4",
	"(NH4)3H(SO4)2",
	"NH4HSO4",
	"NH4NO3",
	"2NH4NO3 · (NH4)2SO4",
	"3NH4NO3 · (NH4)2SO4",
	"NH4NO3 · NH4HSO4",
}

// AllSolids returns the full catalog including Ice, as a fresh slice.
func AllSolids() []string {
	out := make([]string, 0, len(SolidPhases)+1)
	out = append(out, SolidPhases...)
	out = append(out, Ice)
	return out
}
