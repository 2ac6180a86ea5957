// Package template assembles a category's template into ordered steps with
// validated fields.
package template

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/store"
)

// ErrDuplicateField is a configuration error: one step declares the same
// field_name twice.
var ErrDuplicateField = errors.New("template: duplicate field name within a step")

// TypeFieldName is the storage key of the sale/rent selector.
const TypeFieldName = "type"

// typeFieldCategories are the verticals whose older templates predate the
// sale/rent selector.
var typeFieldCategories = map[string]bool{"cars": true, "car": true, "homes": true, "home": true}

// CategoryLookup is the part of the category service the resolver needs.
type CategoryLookup interface {
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
}

type Resolver struct {
	templates  store.TemplateStorer
	categories CategoryLookup
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewResolver(templates store.TemplateStorer, categories CategoryLookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		templates:  templates,
		categories: categories,
		validate:   NewFieldValidator(),
		logger:     logger,
	}
}

// NewFieldValidator returns a validator that understands the field_type tag
// used on domain.Field. It panics if the tag cannot be registered.
func NewFieldValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("field_type", func(fl validator.FieldLevel) bool {
		return domain.FieldType(fl.Field().String()).Valid()
	})
	if err != nil {
		panic(fmt.Sprintf("template: register field_type validation: %v", err))
	}
	return v
}

// ResolveTemplate looks the category up and resolves its template.
func (r *Resolver) ResolveTemplate(ctx context.Context, categoryID int64) (*domain.ResolvedTemplate, error) {
	category, err := r.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("template: resolve category %d: %w", categoryID, err)
	}
	return r.ResolveForCategory(ctx, category)
}

// ResolveForCategory returns the category's steps in order, each with its
// validated fields. A category without a template yields an empty step list
// and no error; callers must refuse to build a form from it.
func (r *Resolver) ResolveForCategory(ctx context.Context, category *domain.Category) (*domain.ResolvedTemplate, error) {
	fetched, err := r.templates.GetTemplate(ctx, category.ID)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			r.logger.Info("no template configured for category",
				zap.Int64("category_id", category.ID), zap.String("slug", category.Slug))
			return &domain.ResolvedTemplate{Steps: []domain.Step{}}, nil
		}
		return nil, fmt.Errorf("template: fetch for category %d: %w", category.ID, err)
	}

	resolved := &domain.ResolvedTemplate{Template: fetched.Template, Steps: make([]domain.Step, 0, len(fetched.Steps))}
	for _, st := range fetched.Steps {
		fields, err := r.cleanFields(st)
		if err != nil {
			return nil, err
		}
		st.Fields = fields
		resolved.Steps = append(resolved.Steps, st)
	}
	sort.SliceStable(resolved.Steps, func(i, j int) bool {
		return resolved.Steps[i].StepOrder < resolved.Steps[j].StepOrder
	})

	resolved.SharedKeys = sharedKeys(resolved.Steps)
	if len(resolved.SharedKeys) > 0 {
		r.logger.Warn("field names shared across steps write the same custom_fields key",
			zap.Int64("category_id", category.ID), zap.Strings("fields", resolved.SharedKeys))
	}

	if NeedsTypeField(category) && len(resolved.Steps) > 0 && !resolved.HasField(TypeFieldName) {
		first := &resolved.Steps[0]
		first.Fields = append([]domain.Field{typeField(first.ID)}, first.Fields...)
	}
	return resolved, nil
}

// cleanFields copies a step's fields in field_order, dropping entries that
// fail boundary validation and rejecting duplicate names.
func (r *Resolver) cleanFields(st domain.Step) ([]domain.Field, error) {
	fields := make([]domain.Field, 0, len(st.Fields))
	seen := make(map[string]bool, len(st.Fields))
	for _, f := range st.Fields {
		if err := r.validate.Struct(f); err != nil {
			r.logger.Warn("dropping invalid template field",
				zap.Int64("step_id", st.ID), zap.String("field_name", f.FieldName),
				zap.String("field_type", string(f.FieldType)), zap.Error(err))
			continue
		}
		if seen[f.FieldName] {
			return nil, fmt.Errorf("%w: step %d (%q) declares %q more than once", ErrDuplicateField, st.ID, st.Title, f.FieldName)
		}
		seen[f.FieldName] = true
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		fields = append(fields, f)
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].FieldOrder < fields[j].FieldOrder })
	return fields, nil
}

func sharedKeys(steps []domain.Step) []string {
	owners := map[string]int{}
	var order []string
	for _, st := range steps {
		for _, f := range st.Fields {
			if owners[f.FieldName] == 0 {
				order = append(order, f.FieldName)
			}
			owners[f.FieldName]++
		}
	}
	var shared []string
	for _, name := range order {
		if owners[name] > 1 {
			shared = append(shared, name)
		}
	}
	return shared
}

// NeedsTypeField reports whether the category gets a synthesized sale/rent
// selector when its template lacks one.
func NeedsTypeField(category *domain.Category) bool {
	if category == nil {
		return false
	}
	return typeFieldCategories[strings.ToLower(strings.TrimSpace(category.Slug))] ||
		typeFieldCategories[strings.ToLower(strings.TrimSpace(category.Name))]
}

func typeField(stepID int64) domain.Field {
	return domain.Field{
		StepID:     stepID,
		FieldName:  TypeFieldName,
		FieldLabel: "Type",
		FieldType:  domain.FieldSelect,
		IsRequired: true,
		IsVisible:  true,
		Options:    []string{"sale", "rent"},
		Width:      domain.WidthHalf,
	}
}

// FieldsBySection returns every field placed in the section, in declaration
// order. Fields without a section belong to main.
func FieldsBySection(resolved *domain.ResolvedTemplate, section string) []domain.Field {
	var out []domain.Field
	for _, f := range resolved.AllFields() {
		if f.InSection(section) {
			out = append(out, f)
		}
	}
	return out
}
