package render

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/resolve"
)

// Summary is the promoted part of a listing, formatted.
type Summary struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Title       string    `json:"title"`
	Description []Segment `json:"description"`
	Price       string    `json:"price"`
	Status      string    `json:"status"`
	IsPremium   bool      `json:"is_premium"`
	Views       int64     `json:"views"`
	CreatedAt   time.Time `json:"created_at"`
}

// DetailView is the public listing page: visible fields grouped by section.
type DetailView struct {
	Listing Summary   `json:"listing"`
	Images  []string  `json:"images"`
	Header  []Display `json:"header"`
	Main    []Display `json:"main"`
	Sidebar []Display `json:"sidebar"`
}

type ReviewStep struct {
	Title  string    `json:"title"`
	Fields []Display `json:"fields"`
}

type MissingField struct {
	FieldName string `json:"field_name"`
	Label     string `json:"label"`
	Step      string `json:"step"`
}

// ReviewView is what an admin sees before approving: every field including
// hidden ones, the required answers that are missing, and custom_fields keys
// the template does not declare.
type ReviewView struct {
	Listing Summary        `json:"listing"`
	Images  []string       `json:"images"`
	Steps   []ReviewStep   `json:"steps"`
	Missing []MissingField `json:"missing"`
	Extra   []Display      `json:"extra"`
}

type Service struct {
	registry    *Registry
	placeholder string
	logger      *zap.Logger
}

func NewService(registry *Registry, placeholderImage string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, placeholder: placeholderImage, logger: logger}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) summary(listing *domain.Listing) Summary {
	return Summary{
		ID:          listing.ID,
		CategoryID:  listing.CategoryID,
		Title:       listing.Title,
		Description: Linkify(listing.Description),
		Price:       s.registry.format.Money(listing.Price),
		Status:      listing.Status,
		IsPremium:   listing.IsPremium,
		Views:       listing.Views,
		CreatedAt:   listing.CreatedAt,
	}
}

// Field renders one field of the listing.
func (s *Service) Field(listing *domain.Listing, field domain.Field) (Display, bool) {
	v, ok := resolve.ResolveValue(listing, field)
	return s.registry.Render(field, v, ok)
}

// Detail renders the listing page. Image fields feed the gallery rather than
// a section; hidden fields are left out. resolved may be nil for listings
// whose category has no template.
func (s *Service) Detail(listing *domain.Listing, resolved *domain.ResolvedTemplate) *DetailView {
	view := &DetailView{
		Listing: s.summary(listing),
		Images:  resolve.ResolveImages(listing, steps(resolved), s.placeholder),
		Header:  []Display{},
		Main:    []Display{},
		Sidebar: []Display{},
	}
	seen := map[string]bool{}
	for _, f := range resolved.AllFields() {
		if !f.IsVisible || f.FieldType == domain.FieldImage || seen[f.FieldName] {
			continue
		}
		seen[f.FieldName] = true
		d, ok := s.Field(listing, f)
		if !ok {
			continue
		}
		switch {
		case f.InSection(domain.SectionHeader):
			view.Header = append(view.Header, d)
		case f.InSection(domain.SectionSidebar):
			view.Sidebar = append(view.Sidebar, d)
		default:
			view.Main = append(view.Main, d)
		}
	}
	return view
}

// Review renders the admin dialog.
func (s *Service) Review(listing *domain.Listing, resolved *domain.ResolvedTemplate) *ReviewView {
	view := &ReviewView{
		Listing: s.summary(listing),
		Images:  resolve.ResolveImages(listing, steps(resolved), s.placeholder),
		Steps:   []ReviewStep{},
		Missing: []MissingField{},
		Extra:   []Display{},
	}
	declared := map[string]bool{}
	for _, st := range steps(resolved) {
		rs := ReviewStep{Title: st.Title, Fields: []Display{}}
		for _, f := range st.Fields {
			declared[f.FieldName] = true
			v, ok := resolve.ResolveValue(listing, f)
			if d, shown := s.registry.Render(f, v, ok); shown {
				rs.Fields = append(rs.Fields, d)
				continue
			}
			if f.MustAnswer() {
				view.Missing = append(view.Missing, MissingField{FieldName: f.FieldName, Label: f.Label(), Step: st.Title})
			}
		}
		view.Steps = append(view.Steps, rs)
	}

	var extra []string
	for name := range listing.CustomFields {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		field := domain.Field{FieldName: name, FieldType: domain.FieldText, IsVisible: true}
		if d, ok := s.registry.Render(field, listing.CustomFields[name], true); ok {
			view.Extra = append(view.Extra, d)
		}
	}
	if len(view.Missing) > 0 {
		s.logger.Debug("listing under review lacks required answers",
			zap.Int64("listing_id", listing.ID), zap.Int("missing", len(view.Missing)))
	}
	return view
}

func steps(resolved *domain.ResolvedTemplate) []domain.Step {
	if resolved == nil {
		return nil
	}
	return resolved.Steps
}
