package wizard

import (
	"context"

	"github.com/stretchr/testify/mock"

	"classifieds-template-service/internal/domain"
)

type MockCategories struct {
	mock.Mock
}

func (m *MockCategories) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategories) ResolveCategory(ctx context.Context, ref string) (*domain.Category, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

type MockTemplates struct {
	mock.Mock
}

func (m *MockTemplates) ResolveForCategory(ctx context.Context, category *domain.Category) (*domain.ResolvedTemplate, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResolvedTemplate), args.Error(1)
}

type MockListings struct {
	mock.Mock
}

func (m *MockListings) GetListingByID(ctx context.Context, id int64) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockListings) CreateListing(ctx context.Context, payload *domain.ListingPayload) (int64, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListings) UpdateListing(ctx context.Context, id int64, payload *domain.ListingPayload) error {
	args := m.Called(ctx, id, payload)
	return args.Error(0)
}

type MockQuota struct {
	mock.Mock
}

func (m *MockQuota) CheckSubscriptionAccess(ctx context.Context, userID string) (*domain.SubscriptionAccess, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubscriptionAccess), args.Error(1)
}
