package store

import (
	"context"

	"classifieds-template-service/internal/domain"
)

// CategoryStorer defines the database operations for categories.
type CategoryStorer interface {
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error) // Small, static set: no pagination
}

// TemplateStorer fetches a category's template together with its ordered
// steps and their fields.
type TemplateStorer interface {
	// GetTemplate returns ErrTemplateNotFound when the category has no template.
	GetTemplate(ctx context.Context, categoryID int64) (*domain.ResolvedTemplate, error)
}

// ListListingsParams holds parameters for listing listings.
type ListListingsParams struct {
	Limit      int
	Offset     int
	CategoryID *int64
	UserID     *string
	Status     *string
}

// ListingStorer defines the database operations for listings.
type ListingStorer interface {
	GetListingByID(ctx context.Context, id int64) (*domain.Listing, error)
	ListListings(ctx context.Context, params ListListingsParams) ([]domain.Listing, int, error)
	CreateListing(ctx context.Context, payload *domain.ListingPayload) (int64, error)
	UpdateListing(ctx context.Context, id int64, payload *domain.ListingPayload) error
	DeleteListing(ctx context.Context, id int64) error
	// UpdateListingStatus leaves is_premium untouched when isPremium is nil.
	UpdateListingStatus(ctx context.Context, id int64, status string, isPremium *bool) error
}

// SubscriptionChecker reports how many posts a user has left per category slug.
type SubscriptionChecker interface {
	CheckSubscriptionAccess(ctx context.Context, userID string) (*domain.SubscriptionAccess, error)
}
