package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/render"
	"classifieds-template-service/internal/store"
	"classifieds-template-service/internal/wizard"
)

// CategoryService resolves and lists categories.
type CategoryService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	ResolveCategory(ctx context.Context, ref string) (*domain.Category, error)
}

type TemplateResolver interface {
	ResolveForCategory(ctx context.Context, category *domain.Category) (*domain.ResolvedTemplate, error)
}

// Backend bundles the collaborators both transports serve from.
type Backend struct {
	Catalog   CategoryService
	Templates TemplateResolver
	Listings  store.ListingStorer
	Renderer  *render.Service
	Sessions  *wizard.Sessions
	Wizard    wizard.Deps
	Logger    *zap.Logger
}

func (b *Backend) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *Backend) templateFor(ctx context.Context, ref string) (*domain.Category, *domain.ResolvedTemplate, error) {
	category, err := b.Catalog.ResolveCategory(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := b.Templates.ResolveForCategory(ctx, category)
	if err != nil {
		return nil, nil, err
	}
	return category, resolved, nil
}

func (b *Backend) listingWithTemplate(ctx context.Context, id int64) (*domain.Listing, *domain.ResolvedTemplate, error) {
	listing, err := b.Listings.GetListingByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	category, err := b.Catalog.GetCategory(ctx, listing.CategoryID)
	if err != nil {
		return nil, nil, fmt.Errorf("category of listing %d: %w", id, err)
	}
	resolved, err := b.Templates.ResolveForCategory(ctx, category)
	if err != nil {
		return nil, nil, err
	}
	return listing, resolved, nil
}

func (b *Backend) detail(ctx context.Context, id int64) (*render.DetailView, error) {
	listing, resolved, err := b.listingWithTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.Renderer.Detail(listing, resolved), nil
}

func (b *Backend) review(ctx context.Context, id int64) (*render.ReviewView, error) {
	listing, resolved, err := b.listingWithTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.Renderer.Review(listing, resolved), nil
}
