package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FieldType names the input a template field renders as.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldEmail       FieldType = "email"
	FieldPhone       FieldType = "phone"
	FieldURL         FieldType = "url"
	FieldSelect      FieldType = "select"
	FieldMultiselect FieldType = "multiselect"
	FieldRadio       FieldType = "radio"
	FieldCheckbox    FieldType = "checkbox"
	FieldDate        FieldType = "date"
	FieldTime        FieldType = "time"
	FieldDatetime    FieldType = "datetime"
	FieldVideo       FieldType = "video"
	FieldImage       FieldType = "image"
	FieldFile        FieldType = "file"
	FieldColor       FieldType = "color"
)

// FieldTypes lists every supported field type in declaration order.
var FieldTypes = []FieldType{
	FieldText, FieldTextarea, FieldNumber, FieldEmail, FieldPhone, FieldURL,
	FieldSelect, FieldMultiselect, FieldRadio, FieldCheckbox,
	FieldDate, FieldTime, FieldDatetime,
	FieldVideo, FieldImage, FieldFile, FieldColor,
}

func (t FieldType) Valid() bool {
	for _, known := range FieldTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsMedia reports whether values of this type are uploaded asset URLs that
// belong in a listing's media_urls.
func (t FieldType) IsMedia() bool {
	return t == FieldImage || t == FieldVideo || t == FieldFile
}

// HasOptions reports whether the type draws its values from Field.Options.
func (t FieldType) HasOptions() bool {
	switch t {
	case FieldSelect, FieldMultiselect, FieldRadio, FieldCheckbox:
		return true
	}
	return false
}

// Grid spans for the 12-column layout.
const (
	GridColumns  = 12
	WidthFull    = "full"
	WidthHalf    = "half"
	WidthThird   = "third"
	WidthQuarter = "quarter"
)

// Width is a layout hint: a named width or a raw grid span.
type Width string

// Span maps the hint onto the 12-column grid. Unknown or empty widths take
// the full row.
func (w Width) Span() int {
	switch strings.ToLower(strings.TrimSpace(string(w))) {
	case "", WidthFull:
		return 12
	case WidthHalf:
		return 6
	case WidthThird:
		return 4
	case WidthQuarter:
		return 3
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(w)))
	if err != nil {
		return GridColumns
	}
	if n < 1 {
		return 1
	}
	if n > GridColumns {
		return GridColumns
	}
	return n
}

// UnmarshalJSON accepts either "half" or 6.
func (w *Width) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*w = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = Width(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*w = Width(n.String())
	return nil
}

// Field placement sections.
const (
	SectionHeader  = "header"
	SectionMain    = "main"
	SectionSidebar = "sidebar"
)

// Field is a single typed input definition within a step.
type Field struct {
	ID          int64     `json:"id"`
	StepID      int64     `json:"step_id"`
	FieldName   string    `json:"field_name" validate:"required,max=255"`
	FieldLabel  string    `json:"field_label" validate:"max=255"`
	FieldType   FieldType `json:"field_type" validate:"required,field_type"`
	IsRequired  bool      `json:"is_required"`
	IsVisible   bool      `json:"is_visible"`
	Options     []string  `json:"options,omitempty"`
	Width       Width     `json:"width,omitempty"`
	Section     string    `json:"section,omitempty" validate:"omitempty,oneof=header main sidebar"`
	HelpText    *string   `json:"help_text,omitempty"`
	Placeholder *string   `json:"placeholder,omitempty"`
	FieldOrder  int       `json:"field_order"`
}

// InSection reports whether the field belongs to the named section; a field
// without a section belongs to main.
func (f Field) InSection(section string) bool {
	if section == SectionMain {
		return f.Section == "" || f.Section == SectionMain
	}
	return f.Section == section
}

// MustAnswer reports whether the wizard blocks on an empty value for this field.
func (f Field) MustAnswer() bool {
	return f.IsRequired && f.IsVisible
}

// Label falls back to the storage key when no display label is configured.
func (f Field) Label() string {
	if f.FieldLabel != "" {
		return f.FieldLabel
	}
	return f.FieldName
}

// Step is an ordered group of fields; one wizard page.
type Step struct {
	ID          int64   `json:"id"`
	TemplateID  int64   `json:"template_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	StepOrder   int     `json:"step_order"`
	Fields      []Field `json:"fields"`
}

// Template is the field schema attached to a category.
type Template struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResolvedTemplate is a template with its ordered steps and their fields.
// A nil Template with no steps means the category has no template configured.
type ResolvedTemplate struct {
	Template *Template `json:"template"`
	Steps    []Step    `json:"steps"`
	// SharedKeys lists field names declared by more than one step. All such
	// declarations write the same custom_fields key.
	SharedKeys []string `json:"shared_keys,omitempty"`
}

// Configured reports whether there is anything for the wizard to render.
func (r *ResolvedTemplate) Configured() bool {
	return r != nil && r.Template != nil && len(r.Steps) > 0
}

// AllFields flattens the steps in declaration order.
func (r *ResolvedTemplate) AllFields() []Field {
	if r == nil {
		return nil
	}
	var out []Field
	for _, s := range r.Steps {
		out = append(out, s.Fields...)
	}
	return out
}

// HasField reports whether any step declares the field name.
func (r *ResolvedTemplate) HasField(name string) bool {
	for _, f := range r.AllFields() {
		if f.FieldName == name {
			return true
		}
	}
	return false
}
