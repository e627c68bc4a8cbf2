package form

// Kind classifies a form control by how its default value is resolved.
type Kind string

const (
	KindText     Kind = "text" // any text-like input (text, hidden, number, ...)
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
)

// Option is one <option> of a select control.
type Option struct {
	Value    string
	Selected bool
}

// Field describes one addressable control of a discovered form.
//
// Value holds the control's current default: the value attribute for inputs,
// the text content for textareas, and the selected (or first) option's value
// for selects. For checkbox/radio controls Value is the declared value
// attribute, which may be empty; whether the control contributes to the
// initial payload is governed by Checked.
type Field struct {
	Name    string
	Kind    Kind
	Value   string
	Options []Option
	Checked bool
	Label   string // text of the <label for=...> associated with the control, if any
}

// SubmitControl is the first named submit-typed input or button of the form.
type SubmitControl struct {
	Name  string
	Value string
}

// Skeleton is the structured description of a discovered form: where the
// payload must be posted and which controls exist, in document order.
//
// Controls without a name attribute are not represented; they cannot be
// addressed in a form submission.
type Skeleton struct {
	ActionURL string
	Fields    []Field
	Submit    *SubmitControl
}

// Field returns the first field with the given name, or nil.
func (s *Skeleton) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}
