// Package export flattens a parsed result into two-column (parameter, value)
// rows and writes them as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"aimclient/internal/parser/modeltext"
	"aimclient/internal/pattern"
)

// Row is one flattened (parameter, value) pair.
type Row struct {
	Parameter string
	Value     string
}

// scalarOrder pins the well-known scalars to the top of the table.
var scalarOrder = []string{modeltext.LabelGibbs, modeltext.LabelPH}

// Flatten converts res into display/export rows: known scalars first, any
// other scalars in sorted order, then the molarity table sorted by species
// label. A raw-only result yields a single "raw" row.
func Flatten(res modeltext.Result) []Row {
	var rows []Row

	emitted := make(map[string]bool, len(res.Scalars))
	for _, label := range scalarOrder {
		if v, ok := res.Scalars[label]; ok {
			rows = append(rows, Row{label, formatValue(v)})
			emitted[label] = true
		}
	}

	var rest []string
	for label := range res.Scalars {
		if !emitted[label] {
			rest = append(rest, label)
		}
	}
	sort.Strings(rest)
	for _, label := range rest {
		rows = append(rows, Row{label, formatValue(res.Scalars[label])})
	}

	var species []string
	for name := range res.Molarities {
		species = append(species, name)
	}
	sort.Strings(species)
	for _, name := range species {
		rows = append(rows, Row{name, pattern.FormatFloat(res.Molarities[name])})
	}

	if len(rows) == 0 {
		rows = append(rows, Row{"raw", res.Raw})
	}
	return rows
}

func formatValue(v any) string {
	switch t := v.(type) {
	case float64:
		return pattern.FormatFloat(t)
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

// WriteCSV writes res as a two-column CSV with a "parameter,value" header.
func WriteCSV(w io.Writer, res modeltext.Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"parameter", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range Flatten(res) {
		if err := cw.Write([]string{row.Parameter, row.Value}); err != nil {
			return fmt.Errorf("write row %q: %w", row.Parameter, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
