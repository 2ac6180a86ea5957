// Package render turns resolved listing values into typed displays for the
// listing detail page and the admin review dialog.
package render

import (
	"strings"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/resolve"
)

type Kind string

const (
	KindText     Kind = "text"
	KindRichText Kind = "rich_text"
	KindNumber   Kind = "number"
	KindCurrency Kind = "currency"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindTime     Kind = "time"
	KindBoolean  Kind = "boolean"
	KindChoice   Kind = "choice"
	KindList     Kind = "list"
	KindLink     Kind = "link"
	KindMedia    Kind = "media"
	KindColor    Kind = "color"
)

// Display is one field ready to show.
type Display struct {
	FieldName string           `json:"field_name"`
	Label     string           `json:"label"`
	FieldType domain.FieldType `json:"field_type"`
	Kind      Kind             `json:"kind"`
	Text      string           `json:"text"`
	Segments  []Segment        `json:"segments,omitempty"`
	Items     []string         `json:"items,omitempty"`
	Href      string           `json:"href,omitempty"`
	Section   string           `json:"section"`
	Span      int              `json:"span"`
	Visible   bool             `json:"visible"`
}

// Renderer renders a non-empty value of one field type. ok is false when the
// value cannot be shown.
type Renderer interface {
	Render(f *Formatter, field domain.Field, v domain.Value) (Display, bool)
}

type RendererFunc func(f *Formatter, field domain.Field, v domain.Value) (Display, bool)

func (fn RendererFunc) Render(f *Formatter, field domain.Field, v domain.Value) (Display, bool) {
	return fn(f, field, v)
}

// Registry maps field types to renderers. Types without a renderer fall back
// to plain text.
type Registry struct {
	format    *Formatter
	renderers map[domain.FieldType]Renderer
}

// NewRegistry returns a registry with a renderer for every field type.
func NewRegistry(format *Formatter) *Registry {
	r := &Registry{format: format, renderers: map[domain.FieldType]Renderer{}}
	r.Register(domain.FieldText, RendererFunc(renderFreeText))
	r.Register(domain.FieldTextarea, RendererFunc(renderFreeText))
	r.Register(domain.FieldNumber, RendererFunc(renderNumber))
	r.Register(domain.FieldEmail, linkRenderer("mailto:"))
	r.Register(domain.FieldPhone, linkRenderer("tel:"))
	r.Register(domain.FieldURL, linkRenderer(""))
	r.Register(domain.FieldSelect, RendererFunc(renderChoice))
	r.Register(domain.FieldRadio, RendererFunc(renderChoice))
	r.Register(domain.FieldMultiselect, RendererFunc(renderList))
	r.Register(domain.FieldCheckbox, RendererFunc(renderCheckbox))
	r.Register(domain.FieldDate, RendererFunc(renderDate))
	r.Register(domain.FieldDatetime, RendererFunc(renderDateTime))
	r.Register(domain.FieldTime, RendererFunc(renderTime))
	r.Register(domain.FieldImage, RendererFunc(renderMedia))
	r.Register(domain.FieldVideo, RendererFunc(renderMedia))
	r.Register(domain.FieldFile, RendererFunc(renderMedia))
	r.Register(domain.FieldColor, RendererFunc(renderColor))
	return r
}

func (r *Registry) Register(t domain.FieldType, renderer Renderer) {
	r.renderers[t] = renderer
}

// Render displays the value for the field. Missing and empty values are not
// rendered at all.
func (r *Registry) Render(field domain.Field, v domain.Value, present bool) (Display, bool) {
	if !present || v.IsEmpty() {
		return Display{}, false
	}
	renderer, ok := r.renderers[field.FieldType]
	if !ok {
		renderer = RendererFunc(renderPlain)
	}
	d, ok := renderer.Render(r.format, field, v)
	if !ok {
		return Display{}, false
	}
	d.FieldName = field.FieldName
	d.Label = field.Label()
	d.FieldType = field.FieldType
	d.Section = field.Section
	if d.Section == "" {
		d.Section = domain.SectionMain
	}
	d.Span = field.Width.Span()
	d.Visible = field.IsVisible
	return d, true
}

func renderPlain(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	return Display{Kind: KindText, Text: v.Text()}, true
}

func renderFreeText(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	if b, ok := v.BoolVal(); ok {
		return renderBool(b), true
	}
	segments := Linkify(v.Text())
	d := Display{Kind: KindText, Text: PlainText(segments)}
	for _, s := range segments {
		if s.Href != "" {
			d.Kind = KindRichText
			d.Segments = segments
			break
		}
	}
	return d, true
}

func renderBool(b bool) Display {
	if b {
		return Display{Kind: KindBoolean, Text: "Yes"}
	}
	return Display{Kind: KindBoolean, Text: "No"}
}

// moneyNames mark number fields that hold an amount of money.
var moneyNames = []string{"price", "salary", "cost"}

func isMoney(name string) bool {
	name = strings.ToLower(name)
	for _, m := range moneyNames {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

func renderNumber(f *Formatter, field domain.Field, v domain.Value) (Display, bool) {
	n, ok := v.Num()
	if !ok {
		if n, ok = toFloat(v.Text()); !ok {
			return Display{Kind: KindText, Text: v.Text()}, true
		}
	}
	if isMoney(field.FieldName) {
		return Display{Kind: KindCurrency, Text: f.Money(n)}, true
	}
	return Display{Kind: KindNumber, Text: f.Number(n)}, true
}

func linkRenderer(scheme string) Renderer {
	return RendererFunc(func(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
		text := strings.TrimSpace(v.Text())
		var href string
		switch scheme {
		case "tel:":
			href = scheme + strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(text)
		case "":
			href = normalizeURL(text)
		default:
			href = scheme + text
		}
		return Display{Kind: KindLink, Text: text, Href: href}, true
	})
}

func renderChoice(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	if v.Kind() == domain.KindList {
		return renderList(nil, domain.Field{}, v)
	}
	return Display{Kind: KindChoice, Text: v.Text()}, true
}

func renderList(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	var items []string
	if v.Kind() == domain.KindList {
		for _, item := range v.Items() {
			if s := strings.TrimSpace(item.Text()); s != "" {
				items = append(items, s)
			}
		}
	} else {
		items = []string{v.Text()}
	}
	if len(items) == 0 {
		return Display{}, false
	}
	return Display{Kind: KindList, Text: strings.Join(items, ", "), Items: items}, true
}

// renderCheckbox handles both a single yes/no box and a group of options.
func renderCheckbox(f *Formatter, field domain.Field, v domain.Value) (Display, bool) {
	if b, ok := v.BoolVal(); ok {
		return renderBool(b), true
	}
	if s, ok := v.Str(); ok && len(field.Options) == 0 {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "on", "yes":
			return renderBool(true), true
		case "false", "off", "no":
			return renderBool(false), true
		}
	}
	return renderList(f, field, v)
}

func renderDate(f *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	if s, ok := f.Date(v.Text()); ok {
		return Display{Kind: KindDate, Text: s}, true
	}
	return Display{Kind: KindText, Text: v.Text()}, true
}

func renderDateTime(f *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	if s, ok := f.DateTime(v.Text()); ok {
		return Display{Kind: KindDateTime, Text: s}, true
	}
	return Display{Kind: KindText, Text: v.Text()}, true
}

func renderTime(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	return Display{Kind: KindTime, Text: strings.TrimSpace(v.Text())}, true
}

func renderMedia(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	urls := resolve.URLs(v)
	if len(urls) == 0 {
		return Display{}, false
	}
	return Display{Kind: KindMedia, Text: strings.Join(urls, ", "), Items: urls}, true
}

func renderColor(_ *Formatter, _ domain.Field, v domain.Value) (Display, bool) {
	return Display{Kind: KindColor, Text: strings.TrimSpace(v.Text())}, true
}
