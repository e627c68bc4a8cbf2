// Package modeltext converts the model service's loosely formatted response
// into a structured result.
//
// The response mixes scalar summary lines ("Total Gibbs Free Energy = ...",
// "pH = ...") with a tabular list of species/molarity pairs, all inside a
// preformatted block. Parsing is total: absence of recognizable structure
// degrades to a bounded raw excerpt, never an error.
package modeltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"aimclient/internal/pattern"
)

// Canonical scalar labels.
const (
	LabelGibbs = "Total Gibbs Free Energy"
	LabelPH    = "pH"
)

// rawExcerptLimit bounds Result.Raw, in runes.
const rawExcerptLimit = 2000

// Result is the parsed outcome of one submission.
//
// Scalars values are float64, except that a pH token which fails numeric
// parsing is kept verbatim as a string rather than discarded.
//
// Raw is set exactly when neither scalar nor tabular content was recognized;
// it holds the extracted text truncated to 2000 runes (possibly empty, when
// the response itself was empty).
type Result struct {
	Scalars    map[string]any
	Molarities map[string]float64
	Raw        string
}

// Structured reports whether any scalar or tabular content was recognized.
func (r Result) Structured() bool {
	return len(r.Scalars) > 0 || len(r.Molarities) > 0
}

// Parse extracts the relevant text region from an HTML response body and
// parses it. It never fails; unparsable input yields a Result carrying a raw
// excerpt.
func Parse(htmlBody string) Result {
	return ParseText(ExtractText(htmlBody))
}

// ExtractText returns the contents of the first <pre> block, or the page's
// full visible text when no preformatted block exists.
func ExtractText(htmlBody string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return htmlBody
	}

	if pre := doc.Find("pre").First(); pre.Length() > 0 {
		return pre.Text()
	}
	return visibleText(doc)
}

// visibleText joins every text node with a newline, skipping script and
// style content, so line-based parsing still sees one value per line even
// when the page author did not use <pre>.
func visibleText(doc *goquery.Document) string {
	var sb strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range doc.Selection.Nodes {
		walk(n)
	}
	return sb.String()
}

// ParseText parses the extracted plain text.
func ParseText(text string) Result {
	res := Result{}

	if m := pattern.GibbsLine.FindStringSubmatch(text); m != nil {
		if v, err := pattern.ParseFloat(m[1]); err == nil {
			res.setScalar(LabelGibbs, v)
		}
	}

	if m := pattern.PHLine.FindStringSubmatch(text); m != nil {
		if v, err := pattern.ParseFloat(m[1]); err == nil {
			res.setScalar(LabelPH, v)
		} else {
			// Keep the captured token; a mangled pH is still worth showing.
			res.setScalar(LabelPH, m[1])
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := pattern.TableLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := pattern.ParseFloat(m[2])
		if err != nil {
			continue
		}
		if res.Molarities == nil {
			res.Molarities = make(map[string]float64)
		}
		res.Molarities[m[1]] = v
	}

	if !res.Structured() {
		res.Raw = truncate(text, rawExcerptLimit)
	}
	return res
}

func (r *Result) setScalar(label string, v any) {
	if r.Scalars == nil {
		r.Scalars = make(map[string]any)
	}
	r.Scalars[label] = v
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
