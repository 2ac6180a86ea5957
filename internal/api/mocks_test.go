package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/store"
)

type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Error(1)
}

func (m *MockCategoryService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryService) ResolveCategory(ctx context.Context, ref string) (*domain.Category, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

type MockTemplateResolver struct {
	mock.Mock
}

func (m *MockTemplateResolver) ResolveForCategory(ctx context.Context, category *domain.Category) (*domain.ResolvedTemplate, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResolvedTemplate), args.Error(1)
}

// MockListingStorer is a mock implementation of store.ListingStorer
type MockListingStorer struct {
	mock.Mock
}

func (m *MockListingStorer) GetListingByID(ctx context.Context, id int64) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockListingStorer) ListListings(ctx context.Context, params store.ListListingsParams) ([]domain.Listing, int, error) {
	args := m.Called(ctx, params)
	var listings []domain.Listing
	if arg0 := args.Get(0); arg0 != nil {
		listings = arg0.([]domain.Listing)
	}
	return listings, args.Int(1), args.Error(2)
}

func (m *MockListingStorer) CreateListing(ctx context.Context, payload *domain.ListingPayload) (int64, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingStorer) UpdateListing(ctx context.Context, id int64, payload *domain.ListingPayload) error {
	return m.Called(ctx, id, payload).Error(0)
}

func (m *MockListingStorer) DeleteListing(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockListingStorer) UpdateListingStatus(ctx context.Context, id int64, status string, isPremium *bool) error {
	return m.Called(ctx, id, status, isPremium).Error(0)
}

type MockSubscriptionChecker struct {
	mock.Mock
}

func (m *MockSubscriptionChecker) CheckSubscriptionAccess(ctx context.Context, userID string) (*domain.SubscriptionAccess, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubscriptionAccess), args.Error(1)
}
