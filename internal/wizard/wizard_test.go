package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classifieds-template-service/internal/domain"
)

var (
	carsCategory = &domain.Category{ID: 2, Name: "Cars", Slug: "cars"}
	jobsCategory = &domain.Category{ID: 3, Name: "Jobs", Slug: "jobs"}
	tendersCat   = &domain.Category{ID: 4, Name: "Tenders", Slug: "tenders", IsRestricted: true}

	owner = &domain.User{ID: "u-1"}
)

func carsTemplate() *domain.ResolvedTemplate {
	return &domain.ResolvedTemplate{
		Template: &domain.Template{ID: 20, CategoryID: 2},
		Steps: []domain.Step{
			{ID: 1, StepOrder: 1, Title: "Basics", Fields: []domain.Field{
				{FieldName: "type", FieldLabel: "Type", FieldType: domain.FieldSelect, Options: []string{"sale", "rent"}, IsRequired: true, IsVisible: true},
				{FieldName: "title", FieldLabel: "Title", FieldType: domain.FieldText, IsRequired: true, IsVisible: true},
				{FieldName: "price", FieldType: domain.FieldNumber, IsVisible: true},
			}},
			{ID: 2, StepOrder: 2, Title: "Details", Fields: []domain.Field{
				{FieldName: "photo", FieldType: domain.FieldImage, IsVisible: true},
				{FieldName: "used", FieldLabel: "Used", FieldType: domain.FieldCheckbox, IsRequired: true, IsVisible: true},
				{FieldName: "mileage", FieldType: domain.FieldNumber, IsRequired: true, IsVisible: true},
				{FieldName: "vin", FieldType: domain.FieldText, IsRequired: true, IsVisible: false},
			}},
		},
	}
}

type fixture struct {
	categories *MockCategories
	templates  *MockTemplates
	listings   *MockListings
	quota      *MockQuota
	deps       Deps
}

func newFixture() *fixture {
	f := &fixture{
		categories: new(MockCategories),
		templates:  new(MockTemplates),
		listings:   new(MockListings),
		quota:      new(MockQuota),
	}
	f.deps = Deps{
		Categories: f.categories,
		Templates:  f.templates,
		Listings:   f.listings,
		Quota:      f.quota,
		Now:        func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
	return f
}

func (f *fixture) category(ref string, c *domain.Category) {
	f.categories.On("ResolveCategory", mock.Anything, ref).Return(c, nil)
}

func (f *fixture) unlimited(userID string) {
	f.quota.On("CheckSubscriptionAccess", mock.Anything, userID).
		Return(&domain.SubscriptionAccess{CanPost: map[string]int{"cars": domain.QuotaUnlimited}}, nil)
}

func (f *fixture) onCars(t *testing.T) *Wizard {
	t.Helper()
	f.category("cars", carsCategory)
	f.unlimited(owner.ID)
	f.templates.On("ResolveForCategory", mock.Anything, carsCategory).Return(carsTemplate(), nil)
	w := New(f.deps, owner)
	require.NoError(t, w.SelectCategory(context.Background(), "cars"))
	return w
}

func TestSelectCategory_EntersFirstStepAndResetsForm(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)

	view := w.View()
	assert.Equal(t, 1, view.Step)
	assert.Equal(t, 4, view.StepCount)
	assert.Equal(t, StepTemplate, view.StepKind)
	require.NotNil(t, view.CurrentStep)
	assert.Equal(t, "Basics", view.CurrentStep.Title)
	assert.Empty(t, view.Form)
	assert.False(t, view.Loading)
}

func TestSelectCategory_Gates(t *testing.T) {
	tests := []struct {
		name     string
		user     *domain.User
		category *domain.Category
		access   *domain.SubscriptionAccess
		wantErr  error
	}{
		{"restricted for plain user", owner, tendersCat, nil, ErrRestrictedCategory},
		{"restricted checked before sign-in", nil, tendersCat, nil, ErrRestrictedCategory},
		{"restricted for unverified company", &domain.User{ID: "c", AccountType: domain.AccountTypeCompany}, tendersCat, nil, ErrRestrictedCategory},
		{"anonymous", nil, jobsCategory, nil, ErrUnauthenticated},
		{"quota exhausted", owner, jobsCategory, &domain.SubscriptionAccess{CanPost: map[string]int{"jobs": 0}}, ErrQuotaExhausted},
		{"quota unlimited", owner, jobsCategory, &domain.SubscriptionAccess{CanPost: map[string]int{"jobs": -1}}, nil},
		{"quota remaining", owner, jobsCategory, &domain.SubscriptionAccess{CanPost: map[string]int{"jobs": 2}}, nil},
		{"quota silent on category", owner, jobsCategory, &domain.SubscriptionAccess{CanPost: map[string]int{"cars": 0}}, nil},
		{"verified company in restricted", &domain.User{ID: "c", AccountType: domain.AccountTypeCompany, VerificationStatus: domain.VerificationStatusVerified}, tendersCat, &domain.SubscriptionAccess{}, nil},
		{"admin in restricted", &domain.User{ID: "a", Role: domain.RoleAdmin}, tendersCat, &domain.SubscriptionAccess{}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.category(tc.category.Slug, tc.category)
			if tc.access != nil {
				f.quota.On("CheckSubscriptionAccess", mock.Anything, mock.Anything).Return(tc.access, nil)
			}
			f.templates.On("ResolveForCategory", mock.Anything, tc.category).Return(carsTemplate(), nil)

			w := New(f.deps, tc.user)
			err := w.SelectCategory(context.Background(), tc.category.Slug)

			view := w.View()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, StepCategorySelect, view.StepKind)
				assert.False(t, view.Loading)
				f.templates.AssertNotCalled(t, "ResolveForCategory", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, view.Step)
		})
	}
}

func TestSelectCategory_NoTemplateBlocks(t *testing.T) {
	f := newFixture()
	f.category("jobs", jobsCategory)
	f.quota.On("CheckSubscriptionAccess", mock.Anything, owner.ID).Return(&domain.SubscriptionAccess{}, nil)
	f.templates.On("ResolveForCategory", mock.Anything, jobsCategory).Return(&domain.ResolvedTemplate{Steps: []domain.Step{}}, nil)

	w := New(f.deps, owner)
	err := w.SelectCategory(context.Background(), "jobs")

	assert.ErrorIs(t, err, ErrNoTemplate)
	assert.Equal(t, StepCategorySelect, w.View().StepKind)
	assert.Nil(t, w.View().Template)
}

func TestSelectCategory_CollaboratorFailure(t *testing.T) {
	f := newFixture()
	f.categories.On("ResolveCategory", mock.Anything, "nope").Return(nil, errors.New("category not found"))

	w := New(f.deps, owner)
	err := w.SelectCategory(context.Background(), "nope")

	require.Error(t, err)
	assert.False(t, w.View().Loading)
}

func TestNext_RequiredVisibleSelectBlocksUntilAnswered(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	require.NoError(t, w.SetField("title", domain.String("Volvo 240")))

	err := w.Next()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, 1, verr.Step)
	assert.Equal(t, map[string]string{"type": "Type is required"}, verr.Fields)
	assert.Equal(t, "Type is required", w.View().Errors["type"])
	assert.Equal(t, 1, w.View().Step)

	require.NoError(t, w.SetField("type", domain.String("rent")))
	assert.Empty(t, w.View().Errors, "answering clears the error immediately")

	require.NoError(t, w.Next())
	assert.Equal(t, 2, w.View().Step)
}

func TestNext_EmptyAnswerKeepsError(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	require.Error(t, w.Next())

	require.NoError(t, w.SetField("title", domain.String("   ")))

	assert.Contains(t, w.View().Errors, "title")
}

func TestNext_FalseAndZeroAreAnswers(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	require.NoError(t, w.SetFields(domain.Values{"type": domain.String("sale"), "title": domain.String("Saab")}))
	require.NoError(t, w.Next())

	err := w.Next()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	assert.NotContains(t, verr.Fields, "vin", "hidden required fields are exempt")

	require.NoError(t, w.SetField("used", domain.Bool(false)))
	require.NoError(t, w.SetField("mileage", domain.Number(0)))
	require.NoError(t, w.Next())
	assert.Equal(t, StepReview, w.View().StepKind)
}

func TestNext_EmptyListIsNoAnswer(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	require.NoError(t, w.SetFields(domain.Values{"type": domain.List(), "title": domain.String("Saab")}))

	err := w.Next()

	require.ErrorIs(t, err, ErrValidation)
}

func TestSetField_UnknownFieldRejected(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)

	assert.ErrorIs(t, w.SetField("colour", domain.String("red")), ErrUnknownField)
	assert.ErrorIs(t, w.SetFields(domain.Values{"title": domain.String("ok"), "bogus": domain.Null()}), ErrUnknownField)
	_, ok := w.Value("title")
	assert.False(t, ok, "a rejected batch applies nothing")
}

func TestSetField_OutsideTemplateStep(t *testing.T) {
	w := New(newFixture().deps, owner)

	assert.ErrorIs(t, w.SetField("title", domain.String("x")), ErrInvalidTransition)
}

func TestBack(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	require.NoError(t, w.SetFields(domain.Values{"type": domain.String("sale"), "title": domain.String("Saab")}))
	require.NoError(t, w.Next())

	require.NoError(t, w.Back())
	assert.Equal(t, 1, w.View().Step)
	require.NoError(t, w.Back())
	assert.Equal(t, StepCategorySelect, w.View().StepKind)
	assert.ErrorIs(t, w.Back(), ErrInvalidTransition)

	v, ok := w.Value("title")
	assert.True(t, ok, "back keeps answers")
	assert.Equal(t, "Saab", v.Text())
}

func fillCars(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.SetFields(domain.Values{
		"type":  domain.String("sale"),
		"title": domain.String("Saab 900"),
		"price": domain.String("4500"),
	}))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetFields(domain.Values{
		"photo":   domain.String("http://x/1.jpg"),
		"used":    domain.Bool(true),
		"mileage": domain.Number(120000),
	}))
	require.NoError(t, w.Next())
}

func TestSubmit_CreatesListing(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	fillCars(t, w)

	var got *domain.ListingPayload
	f.listings.On("CreateListing", mock.Anything, mock.AnythingOfType("*domain.ListingPayload")).
		Run(func(args mock.Arguments) { got = args.Get(1).(*domain.ListingPayload) }).
		Return(int64(77), nil)

	id, err := w.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	require.NotNil(t, got)
	assert.Equal(t, "Saab 900", got.Title)
	assert.Equal(t, 4500.0, got.Price)
	require.NotNil(t, got.Type)
	assert.Equal(t, "sale", *got.Type)
	require.NotNil(t, got.UserID)
	assert.Equal(t, owner.ID, *got.UserID)
	assert.Equal(t, "2024-05-31T00:00:00Z", got.CustomFields["expires_at"].Text())
	assert.Equal(t, []domain.MediaURL{{Type: "image", URL: "http://x/1.jpg", FieldName: "photo"}}, got.MediaURLs)

	view := w.View()
	assert.True(t, view.Submitted)
	assert.Equal(t, int64(77), view.ListingID)
}

func TestSubmit_FailureKeepsFormForRetry(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	fillCars(t, w)
	f.listings.On("CreateListing", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection reset")).Once()
	f.listings.On("CreateListing", mock.Anything, mock.Anything).Return(int64(5), nil).Once()

	_, err := w.Submit(context.Background())

	require.ErrorIs(t, err, ErrSubmitFailed)
	view := w.View()
	assert.Equal(t, StepReview, view.StepKind)
	assert.Contains(t, view.SubmitError, "connection reset")
	assert.Equal(t, "Saab 900", view.Form["title"].Text())
	assert.False(t, view.Loading)

	id, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Empty(t, w.View().SubmitError)
}

func TestSubmit_OnlyFromReview(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)

	_, err := w.Submit(context.Background())

	assert.ErrorIs(t, err, ErrInvalidTransition)
	f.listings.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything)
}

func TestSubmit_OnlyOnce(t *testing.T) {
	f := newFixture()
	w := f.onCars(t)
	fillCars(t, w)
	f.listings.On("CreateListing", mock.Anything, mock.Anything).Return(int64(77), nil)

	id, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)

	_, err = w.Submit(context.Background())

	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	f.listings.AssertNumberOfCalls(t, "CreateListing", 1)
	assert.Equal(t, int64(77), w.View().ListingID)
}

func editListing() *domain.Listing {
	saleType := "sale"
	return &domain.Listing{
		ID:         9,
		UserID:     owner.ID,
		CategoryID: carsCategory.ID,
		Title:      "Old title",
		Price:      1000,
		Type:       &saleType,
		Status:     domain.StatusApproved,
		CustomFields: domain.Values{
			"photo":   domain.String("http://x/1.jpg"),
			"mileage": domain.Number(5000),
			"used":    domain.Bool(false),
		},
		MediaURLs: []domain.MediaURL{{Type: "image", FieldName: "photo", URL: "http://x/2.jpg"}},
		Details:   domain.Values{"vin": domain.String("YS3AK35E")},
	}
}

func (f *fixture) editable(listing *domain.Listing) {
	f.listings.On("GetListingByID", mock.Anything, listing.ID).Return(listing, nil)
	f.categories.On("GetCategory", mock.Anything, listing.CategoryID).Return(carsCategory, nil)
	f.templates.On("ResolveForCategory", mock.Anything, carsCategory).Return(carsTemplate(), nil)
}

func TestLoadForEdit_MediaURLsWin(t *testing.T) {
	f := newFixture()
	f.editable(editListing())
	w := New(f.deps, owner)

	require.NoError(t, w.LoadForEdit(context.Background(), 9))

	photo, ok := w.Value("photo")
	require.True(t, ok)
	assert.Equal(t, "http://x/2.jpg", photo.Text())

	view := w.View()
	assert.Equal(t, "edit", view.Mode)
	assert.Equal(t, 1, view.Step)
	assert.Equal(t, "Old title", view.Form["title"].Text())
	assert.Equal(t, "sale", view.Form["type"].Text())
	assert.Equal(t, "YS3AK35E", view.Form["vin"].Text())
	f.quota.AssertNotCalled(t, "CheckSubscriptionAccess", mock.Anything, mock.Anything)
}

func TestLoadForEdit_SubmitUpdatesWithoutOwnerColumns(t *testing.T) {
	f := newFixture()
	f.editable(editListing())
	w := New(f.deps, owner)
	require.NoError(t, w.LoadForEdit(context.Background(), 9))
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())

	var got *domain.ListingPayload
	f.listings.On("UpdateListing", mock.Anything, int64(9), mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(*domain.ListingPayload) }).
		Return(nil)

	id, err := w.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	require.NotNil(t, got)
	assert.Nil(t, got.Status)
	assert.Nil(t, got.UserID)
	assert.NotContains(t, got.CustomFields, "expires_at")
	f.listings.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything)
}

func TestLoadForEdit_SubmitKeepsStoredCustomFields(t *testing.T) {
	f := newFixture()
	listing := editListing()
	listing.CustomFields["expires_at"] = domain.String("2024-05-20T00:00:00Z")
	listing.CustomFields["legacy_note"] = domain.String("imported")
	f.editable(listing)
	w := New(f.deps, owner)
	require.NoError(t, w.LoadForEdit(context.Background(), 9))
	require.NoError(t, w.SetField("mileage", domain.Number(6000)))
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())

	f.listings.On("UpdateListing", mock.Anything, int64(9), mock.MatchedBy(func(p *domain.ListingPayload) bool {
		return p.CustomFields["expires_at"].Text() == "2024-05-20T00:00:00Z" &&
			p.CustomFields["legacy_note"].Text() == "imported" &&
			p.CustomFields["mileage"].Text() == "6000"
	})).Return(nil).Once()

	_, err := w.Submit(context.Background())

	require.NoError(t, err)
	f.listings.AssertExpectations(t)
}

func TestLoadForEdit_BackAndReselectStaysInEdit(t *testing.T) {
	f := newFixture()
	f.editable(editListing())
	f.category("cars", carsCategory)
	f.quota.On("CheckSubscriptionAccess", mock.Anything, owner.ID).
		Return(&domain.SubscriptionAccess{CanPost: map[string]int{"cars": 0}}, nil)
	w := New(f.deps, owner)
	require.NoError(t, w.LoadForEdit(context.Background(), 9))
	require.NoError(t, w.SetField("title", domain.String("New title")))
	require.NoError(t, w.Back())

	require.NoError(t, w.SelectCategory(context.Background(), "cars"))

	view := w.View()
	assert.Equal(t, "edit", view.Mode)
	assert.Equal(t, 1, view.Step)
	assert.Equal(t, "New title", view.Form["title"].Text())
	f.quota.AssertNotCalled(t, "CheckSubscriptionAccess", mock.Anything, mock.Anything)

	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	f.listings.On("UpdateListing", mock.Anything, int64(9), mock.Anything).Return(nil).Once()
	id, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	f.listings.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything)
}

func TestLoadForEdit_ReselectOtherCategoryRejected(t *testing.T) {
	f := newFixture()
	f.editable(editListing())
	f.category("jobs", jobsCategory)
	w := New(f.deps, owner)
	require.NoError(t, w.LoadForEdit(context.Background(), 9))
	require.NoError(t, w.Back())

	err := w.SelectCategory(context.Background(), "jobs")

	assert.ErrorIs(t, err, ErrCategoryLocked)
	view := w.View()
	assert.Equal(t, 0, view.Step)
	assert.Equal(t, "edit", view.Mode)
	assert.Equal(t, "Old title", view.Form["title"].Text())
	assert.False(t, view.Loading)
	f.templates.AssertNotCalled(t, "ResolveForCategory", mock.Anything, jobsCategory)
}

func TestLoadForEdit_OtherUsersListing(t *testing.T) {
	f := newFixture()
	listing := editListing()
	listing.UserID = "someone-else"
	f.listings.On("GetListingByID", mock.Anything, int64(9)).Return(listing, nil)

	w := New(f.deps, owner)
	err := w.LoadForEdit(context.Background(), 9)

	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, w.View().Loading)
}

func TestLoadForEdit_EditsWaitForPopulation(t *testing.T) {
	f := newFixture()
	listing := editListing()
	started, release := make(chan struct{}), make(chan struct{})
	f.listings.On("GetListingByID", mock.Anything, int64(9)).
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(listing, nil)
	f.categories.On("GetCategory", mock.Anything, carsCategory.ID).Return(carsCategory, nil)
	f.templates.On("ResolveForCategory", mock.Anything, carsCategory).Return(carsTemplate(), nil)

	w := New(f.deps, owner)
	done := make(chan error, 1)
	go func() { done <- w.LoadForEdit(context.Background(), 9) }()
	<-started

	assert.ErrorIs(t, w.SetField("title", domain.String("typed early")), ErrBusy)
	assert.True(t, w.View().Loading)

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, w.SetField("title", domain.String("typed later")))
	v, _ := w.Value("title")
	assert.Equal(t, "typed later", v.Text())
}

func TestSelectCategory_LateResultDiscardedAfterAbort(t *testing.T) {
	f := newFixture()
	f.category("cars", carsCategory)
	f.unlimited(owner.ID)
	started, release := make(chan struct{}), make(chan struct{})
	f.templates.On("ResolveForCategory", mock.Anything, carsCategory).
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(carsTemplate(), nil)

	w := New(f.deps, owner)
	done := make(chan error, 1)
	go func() { done <- w.SelectCategory(context.Background(), "cars") }()
	<-started

	w.Abort()
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	view := w.View()
	assert.Nil(t, view.Template)
	assert.Equal(t, StepCategorySelect, view.StepKind)
	assert.ErrorIs(t, w.SelectCategory(context.Background(), "cars"), ErrClosed)
}

func TestSelectCategory_NewerSelectionWins(t *testing.T) {
	f := newFixture()
	f.category("cars", carsCategory)
	f.category("jobs", jobsCategory)
	f.quota.On("CheckSubscriptionAccess", mock.Anything, owner.ID).Return(&domain.SubscriptionAccess{}, nil)
	started, release := make(chan struct{}), make(chan struct{})
	f.templates.On("ResolveForCategory", mock.Anything, carsCategory).
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(carsTemplate(), nil)
	jobs := &domain.ResolvedTemplate{
		Template: &domain.Template{ID: 30},
		Steps:    []domain.Step{{ID: 7, Title: "Role", Fields: []domain.Field{{FieldName: "role", FieldType: domain.FieldText}}}},
	}
	f.templates.On("ResolveForCategory", mock.Anything, jobsCategory).Return(jobs, nil)

	w := New(f.deps, owner)
	done := make(chan error, 1)
	go func() { done <- w.SelectCategory(context.Background(), "cars") }()
	<-started

	require.NoError(t, w.SelectCategory(context.Background(), "jobs"))
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	view := w.View()
	assert.Equal(t, "jobs", view.Category.Slug)
	assert.Equal(t, "Role", view.CurrentStep.Title)
	assert.False(t, view.Loading)
}

func TestAuthenticate(t *testing.T) {
	w := New(newFixture().deps, owner)

	assert.True(t, w.Authenticate(&domain.User{ID: owner.ID}))
	assert.False(t, w.Authenticate(&domain.User{ID: "intruder"}))
	assert.False(t, w.Authenticate(nil))
	assert.Equal(t, owner.ID, w.User().ID)
}

func TestAuthenticate_AnonymousSessionIsNotAdopted(t *testing.T) {
	w := New(newFixture().deps, nil)

	assert.True(t, w.Authenticate(nil))
	assert.False(t, w.Authenticate(owner))
	assert.Nil(t, w.User())
}
