// Package catalog resolves marketplace categories from the loosely typed
// references that arrive in URLs: ids, slugs, names, singular or plural.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/store"
)

var ErrCategoryNotFound = errors.New("catalog: category not found")

// Service resolves category references. Successful resolutions are cached
// for the life of the process, keyed by the reference exactly as requested.
// Category slugs are effectively static, so the cache is never invalidated.
type Service struct {
	categories store.CategoryStorer
	logger     *zap.Logger
	resolved   sync.Map // requested ref -> domain.Category
}

func NewService(categories store.CategoryStorer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{categories: categories, logger: logger}
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	category, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// ResolveCategoryID is ResolveCategory for callers that only need the id.
func (s *Service) ResolveCategoryID(ctx context.Context, ref string) (int64, error) {
	category, err := s.ResolveCategory(ctx, ref)
	if err != nil {
		return 0, err
	}
	return category.ID, nil
}

// ResolveCategory accepts a numeric id, a slug or a name. Matching ignores
// case and tolerates singular/plural differences ("home" finds "homes",
// "cars" finds "car").
func (s *Service) ResolveCategory(ctx context.Context, ref string) (*domain.Category, error) {
	if cached, ok := s.resolved.Load(ref); ok {
		c := cached.(domain.Category)
		return &c, nil
	}

	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, ErrCategoryNotFound
	}

	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil && id > 0 {
		category, err := s.GetCategory(ctx, id)
		if err == nil {
			s.remember(ref, category)
			return category, nil
		}
		if !errors.Is(err, ErrCategoryNotFound) {
			return nil, fmt.Errorf("catalog: resolve %q: %w", ref, err)
		}
	}

	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve %q: %w", ref, err)
	}

	category := match(categories, trimmed)
	if category == nil {
		s.logger.Debug("category reference did not resolve", zap.String("ref", ref))
		return nil, ErrCategoryNotFound
	}
	s.remember(ref, category)
	return category, nil
}

func (s *Service) remember(ref string, category *domain.Category) {
	s.resolved.Store(ref, *category)
}

// match tries exact slug, exact name, then the singular/plural variants of
// the reference against slugs and names.
func match(categories []domain.Category, ref string) *domain.Category {
	want := strings.ToLower(ref)
	for i := range categories {
		if strings.ToLower(categories[i].Slug) == want {
			return &categories[i]
		}
	}
	for i := range categories {
		if strings.ToLower(categories[i].Name) == want {
			return &categories[i]
		}
	}
	for _, variant := range NumberVariants(want) {
		for i := range categories {
			if strings.ToLower(categories[i].Slug) == variant || strings.ToLower(categories[i].Name) == variant {
				return &categories[i]
			}
		}
	}
	return nil
}

// NumberVariants returns the plural and singular spellings of a lower-case
// English word, excluding the word itself.
func NumberVariants(word string) []string {
	var out []string
	add := func(v string) {
		if v == "" || v == word {
			return
		}
		for _, seen := range out {
			if seen == v {
				return
			}
		}
		out = append(out, v)
	}

	if strings.HasSuffix(word, "ies") && len(word) > 3 {
		add(strings.TrimSuffix(word, "ies") + "y")
	}
	if stem := strings.TrimSuffix(word, "es"); stem != word && sibilant(stem) {
		add(stem)
	}
	if strings.HasSuffix(word, "s") {
		add(strings.TrimSuffix(word, "s"))
	} else {
		add(word + "s")
		if strings.HasSuffix(word, "y") && len(word) > 1 && !strings.ContainsRune("aeiou", rune(word[len(word)-2])) {
			add(strings.TrimSuffix(word, "y") + "ies")
		}
		if sibilant(word) {
			add(word + "es")
		}
	}
	return out
}

func sibilant(word string) bool {
	for _, suffix := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(word, suffix) {
			return true
		}
	}
	return false
}
