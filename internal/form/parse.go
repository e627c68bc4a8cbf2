// Package form discovers the structure of the remote model's HTML form.
//
// The remote page is not a stable contract: field names, option layouts and
// even the form action move between page revisions. Discovery therefore
// extracts whatever the page currently serves into a Skeleton and leaves all
// interpretation to the mapper.
package form

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"aimclient/internal/webclient"
)

// Discover fetches the configured model page over sess and parses its first
// form. A page that serves no form, or HTML that cannot be parsed at all,
// yields (nil, nil); only transport failures are errors.
func Discover(ctx context.Context, sess *webclient.Session) (*Skeleton, error) {
	page, err := sess.FetchPage(ctx)
	if err != nil {
		return nil, err
	}

	skel, err := Parse(page, sess.PageURL())
	if err != nil {
		return nil, nil
	}
	return skel, nil
}

// Parse locates the first form element in html and builds its Skeleton.
//
// The returned skeleton's ActionURL is the form's action attribute resolved
// against pageURL; when the attribute is absent, pageURL itself.
//
// A page with no form element is not an error: Parse returns (nil, nil) and
// the caller is expected to fall back to a generic submission.
func Parse(html, pageURL string) (*Skeleton, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	f := doc.Find("form").First()
	if f.Length() == 0 {
		return nil, nil
	}

	skel := &Skeleton{
		ActionURL: resolveAction(pageURL, f),
	}

	f.Find("input, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		field, ok := buildField(f, sel)
		if !ok {
			return
		}
		skel.Fields = append(skel.Fields, field)
	})

	skel.Submit = findSubmit(f)
	return skel, nil
}

// resolveAction joins the form's action attribute against pageURL.
// An unparsable action is returned as-is rather than dropped.
func resolveAction(pageURL string, f *goquery.Selection) string {
	action := strings.TrimSpace(f.AttrOr("action", ""))
	if action == "" {
		return pageURL
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return action
	}
	ref, err := url.Parse(action)
	if err != nil {
		return action
	}
	return base.ResolveReference(ref).String()
}

// buildField converts one input/select/textarea node into a Field.
// Controls without a name, and submit/button/image inputs, report ok=false.
func buildField(f, sel *goquery.Selection) (Field, bool) {
	name := sel.AttrOr("name", "")
	if name == "" {
		return Field{}, false
	}

	field := Field{
		Name:  name,
		Label: labelFor(f, sel),
	}

	switch goquery.NodeName(sel) {
	case "textarea":
		field.Kind = KindTextarea
		field.Value = sel.Text()

	case "select":
		field.Kind = KindSelect
		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			_, selected := opt.Attr("selected")
			field.Options = append(field.Options, Option{
				Value:    opt.AttrOr("value", ""),
				Selected: selected,
			})
		})
		field.Value = selectedValue(field.Options)

	default: // input
		switch strings.ToLower(sel.AttrOr("type", "text")) {
		case "checkbox":
			field.Kind = KindCheckbox
		case "radio":
			field.Kind = KindRadio
		case "submit", "button", "image", "reset":
			// Submit-typed controls are discovered separately; see findSubmit.
			return Field{}, false
		default:
			field.Kind = KindText
		}

		field.Value = sel.AttrOr("value", "")
		if field.Kind == KindCheckbox || field.Kind == KindRadio {
			_, field.Checked = sel.Attr("checked")
		}
	}

	return field, true
}

// selectedValue resolves a select control's default: the first option marked
// selected, else the first option, else empty.
func selectedValue(opts []Option) string {
	for _, o := range opts {
		if o.Selected {
			return o.Value
		}
	}
	if len(opts) > 0 {
		return opts[0].Value
	}
	return ""
}

// labelFor resolves the text of the <label for=ID> matching the control's id.
func labelFor(f, sel *goquery.Selection) string {
	id := sel.AttrOr("id", "")
	if id == "" {
		return ""
	}

	lab := f.Find(fmt.Sprintf("label[for=%q]", id)).First()
	if lab.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(lab.Text())
}

// findSubmit returns the first named submit-typed input or button element.
// The value falls back to the element's visible text, then to "Run".
func findSubmit(f *goquery.Selection) *SubmitControl {
	var found *SubmitControl

	f.Find("input, button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		typ := strings.ToLower(sel.AttrOr("type", ""))
		if typ != "submit" && goquery.NodeName(sel) != "button" {
			return true
		}

		name := sel.AttrOr("name", "")
		if name == "" {
			return true // keep scanning for a named control
		}

		val := sel.AttrOr("value", "")
		if val == "" {
			val = strings.TrimSpace(sel.Text())
		}
		if val == "" {
			val = "Run"
		}

		found = &SubmitControl{Name: name, Value: val}
		return false
	})

	return found
}
