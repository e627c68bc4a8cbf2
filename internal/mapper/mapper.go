// Package mapper assigns semantic model parameters onto whatever field names
// the discovered form currently uses.
//
// The assignment is an ordered chain of heuristic rules. Later rules may
// overwrite earlier ones, but only on fields they specifically target; the
// chain never removes a payload entry, so hidden tokens and unrelated
// defaults pass through unchanged. Exact-name matches run before substring
// matches so that a field literally named "t" is not confused by a looser
// heuristic, and the textarea species fallback runs before the generic-field
// fallback because bulk species entry is more often authored as free text.
//
// New remote-form variants are accommodated by inserting rules, not by
// editing existing ones.
package mapper

import (
	"strings"

	"golang.org/x/text/cases"

	"aimclient/internal/form"
	"aimclient/internal/pattern"
)

// Amount is one species entry. Species are carried as an ordered slice so the
// payload built from a given parameter set is deterministic.
type Amount struct {
	Label string
	Moles float64
}

// Params are the semantic inputs to one model submission.
//
// RelativeHumidity is fractional; range validation is a caller concern.
// A nil Solids slice means no solid phases are requested.
type Params struct {
	TemperatureK     float64
	RelativeHumidity float64
	Species          []Amount
	Solids           []string
}

// Payload is the concrete name -> value set to be posted.
type Payload map[string]string

// Rule is one step of the mapping chain.
type Rule struct {
	Name  string
	Apply func(c *Context)
}

// Context carries the state a rule operates on.
type Context struct {
	Skeleton *form.Skeleton
	Params   Params
	Payload  Payload

	placed map[string]bool // species labels already assigned to a field
}

// fold lower-cases s for caseless comparison. Unicode case folding handles
// the occasional non-ASCII character in chemistry labels (µ, middle dots).
// A Caser is stateful, so each call folds with its own; mapping stays safe
// to run from concurrent invocations.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Map seeds a payload from the skeleton's defaults and applies the default
// rule chain.
func Map(skel *form.Skeleton, p Params) Payload {
	return MapRules(skel, p, DefaultRules())
}

// MapRules is Map with an explicit rule chain, for callers that need to
// extend or reorder the heuristics.
func MapRules(skel *form.Skeleton, p Params, rules []Rule) Payload {
	c := &Context{
		Skeleton: skel,
		Params:   p,
		Payload:  Seed(skel),
		placed:   make(map[string]bool),
	}
	for _, r := range rules {
		r.Apply(c)
	}
	return c.Payload
}

// Seed builds the initial payload from every field's current default value.
// Unchecked checkbox/radio controls contribute nothing; a browser would not
// send them either.
func Seed(skel *form.Skeleton) Payload {
	payload := make(Payload, len(skel.Fields))
	for _, f := range skel.Fields {
		switch f.Kind {
		case form.KindCheckbox, form.KindRadio:
			if f.Checked {
				payload[f.Name] = checkedValue(f)
			}
		default:
			payload[f.Name] = f.Value
		}
	}
	return payload
}

// checkedValue is the value a checked box submits: its declared value
// attribute, or the conventional "on".
func checkedValue(f form.Field) string {
	if f.Value != "" {
		return f.Value
	}
	return "on"
}

// DefaultRules returns the standard chain, in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "temperature", Apply: applyTemperature},
		{Name: "relative-humidity", Apply: applyRelativeHumidity},
		{Name: "water-mode", Apply: applyWaterMode},
		{Name: "species-exact", Apply: applySpeciesExact},
		{Name: "species-textarea", Apply: applySpeciesTextarea},
		{Name: "species-generic", Apply: applySpeciesGeneric},
		{Name: "solids", Apply: applySolids},
		{Name: "submit", Apply: applySubmit},
	}
}

// payloadNames returns the payload's keys in skeleton document order,
// followed by any generic keys added by earlier rules. Deterministic
// iteration keeps rule behavior reproducible across runs.
func (c *Context) payloadNames() []string {
	names := make([]string, 0, len(c.Payload))
	seen := make(map[string]bool, len(c.Payload))
	for _, f := range c.Skeleton.Fields {
		if _, ok := c.Payload[f.Name]; ok && !seen[f.Name] {
			names = append(names, f.Name)
			seen[f.Name] = true
		}
	}
	for name := range c.Payload {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}

func nameContainsAny(name string, subs ...string) bool {
	low := fold(name)
	for _, s := range subs {
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}

func isTemperatureName(name string) bool {
	return nameContainsAny(name, "temp", "temperature", "t_") || fold(name) == "t"
}

func isHumidityName(name string) bool {
	return nameContainsAny(name, "rh", "humid", "relative")
}

// applyTemperature overwrites every temperature-like field with TemperatureK.
// With no such field, the generic "Temperature" and "T" keys are added so the
// fallback submission still carries the value.
func applyTemperature(c *Context) {
	v := pattern.FormatFloat(c.Params.TemperatureK)

	matched := false
	for _, name := range c.payloadNames() {
		if isTemperatureName(name) {
			c.Payload[name] = v
			matched = true
		}
	}
	if !matched {
		c.Payload["Temperature"] = v
		c.Payload["T"] = v
	}
}

// applyRelativeHumidity overwrites every humidity-like field, adding a
// generic "RH" key when none exists.
func applyRelativeHumidity(c *Context) {
	v := pattern.FormatFloat(c.Params.RelativeHumidity)

	matched := false
	for _, name := range c.payloadNames() {
		if isHumidityName(name) {
			c.Payload[name] = v
			matched = true
		}
	}
	if !matched {
		c.Payload["RH"] = v
	}
}

// applyWaterMode handles the remote model's water_var convention: the RH
// value goes into the water field and interactive_type is forced to "2",
// selecting RH-driven mode rather than a fixed-composition mode.
func applyWaterMode(c *Context) {
	v := pattern.FormatFloat(c.Params.RelativeHumidity)

	target := ""
	for _, name := range c.payloadNames() {
		low := fold(name)
		if low == "water_var" || strings.Contains(low, "water_var") {
			target = name
			break
		}
		if target == "" && strings.Contains(low, "water") {
			target = name
		}
	}
	if target == "" {
		return
	}

	c.Payload[target] = v
	c.Payload["interactive_type"] = "2"
}

// applySpeciesExact places each species whose label matches a field name
// exactly (caselessly).
func applySpeciesExact(c *Context) {
	names := c.payloadNames()
	for _, sp := range c.Params.Species {
		want := fold(sp.Label)
		for _, name := range names {
			if fold(name) == want {
				c.Payload[name] = pattern.FormatFloat(sp.Moles)
				c.placed[sp.Label] = true
				break
			}
		}
	}
}

// speciesBlock renders all species as "<label> <value>" lines.
func speciesBlock(species []Amount) string {
	lines := make([]string, len(species))
	for i, sp := range species {
		lines[i] = sp.Label + " " + pattern.FormatFloat(sp.Moles)
	}
	return strings.Join(lines, "\n")
}

func (c *Context) anyPlaced() bool {
	return len(c.placed) > 0
}

func (c *Context) placeAll() {
	for _, sp := range c.Params.Species {
		c.placed[sp.Label] = true
	}
}

// applySpeciesTextarea bulk-places all species into the first textarea whose
// name looks like a species input, when exact matching placed nothing.
func applySpeciesTextarea(c *Context) {
	if c.anyPlaced() || len(c.Params.Species) == 0 {
		return
	}

	for _, f := range c.Skeleton.Fields {
		if f.Kind != form.KindTextarea {
			continue
		}
		if nameContainsAny(f.Name, "species", "conc", "concentration", "input") {
			c.Payload[f.Name] = speciesBlock(c.Params.Species)
			c.placeAll()
			return
		}
	}
}

// applySpeciesGeneric is the last-resort species placement: the first
// non-textarea field with a species-looking name receives the same block.
func applySpeciesGeneric(c *Context) {
	if c.anyPlaced() || len(c.Params.Species) == 0 {
		return
	}

	for _, f := range c.Skeleton.Fields {
		if f.Kind == form.KindTextarea {
			continue
		}
		if nameContainsAny(f.Name, "species", "conc", "concentration", "mole") {
			c.Payload[f.Name] = speciesBlock(c.Params.Species)
			c.placeAll()
			return
		}
	}
}

// applySolids checks each requested solid against the checkbox/radio
// controls, in document order. A solid claims at most one field (the first
// whose name, value attribute or label text contains the solid's label), and
// a claimed field submits its declared checked value.
func applySolids(c *Context) {
	used := make(map[string]bool, len(c.Params.Solids))

	for _, f := range c.Skeleton.Fields {
		if f.Kind != form.KindCheckbox && f.Kind != form.KindRadio {
			continue
		}

		lname := fold(f.Name)
		lval := fold(f.Value)
		llabel := fold(f.Label)

		for _, solid := range c.Params.Solids {
			if used[solid] {
				continue
			}
			ls := fold(solid)
			if strings.Contains(lname, ls) || strings.Contains(lval, ls) || strings.Contains(llabel, ls) {
				c.Payload[f.Name] = checkedValue(f)
				used[solid] = true
				break
			}
		}
	}
}

// applySubmit includes the form's submit control so the server treats the
// POST like the user clicking Run.
func applySubmit(c *Context) {
	if s := c.Skeleton.Submit; s != nil {
		c.Payload[s.Name] = s.Value
		return
	}
	c.Payload["submit"] = "Run model"
}

// Generic builds the minimal flat payload used when the page served no form
// at all: temperature, RH and species as plain key/value pairs.
func Generic(p Params) Payload {
	payload := Payload{
		"Temperature": pattern.FormatFloat(p.TemperatureK),
		"T":           pattern.FormatFloat(p.TemperatureK),
		"RH":          pattern.FormatFloat(p.RelativeHumidity),
	}
	for _, sp := range p.Species {
		payload[strings.TrimSpace(sp.Label)] = pattern.FormatFloat(sp.Moles)
	}
	payload["submit"] = "Run model"
	return payload
}
