// Package wizard drives the post-ad flow: category selection, one page per
// template step, then review and submit.
package wizard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/resolve"
	"classifieds-template-service/internal/store"
	"classifieds-template-service/internal/submission"
)

// Categories resolves the category the user picked.
type Categories interface {
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	ResolveCategory(ctx context.Context, ref string) (*domain.Category, error)
}

// Templates resolves a category's template into ordered steps.
type Templates interface {
	ResolveForCategory(ctx context.Context, category *domain.Category) (*domain.ResolvedTemplate, error)
}

// Listings is the listing storage the wizard reads in edit mode and writes on
// submit.
type Listings interface {
	GetListingByID(ctx context.Context, id int64) (*domain.Listing, error)
	CreateListing(ctx context.Context, payload *domain.ListingPayload) (int64, error)
	UpdateListing(ctx context.Context, id int64, payload *domain.ListingPayload) error
}

// Deps are the collaborators shared by every wizard session.
type Deps struct {
	Categories Categories
	Templates  Templates
	Listings   Listings
	Quota      store.SubscriptionChecker
	ExpiryDays int
	Now        func() time.Time
	Logger     *zap.Logger
}

type StepKind string

const (
	StepCategorySelect StepKind = "category_select"
	StepTemplate       StepKind = "template"
	StepReview         StepKind = "review"
)

// Wizard is one user's post-ad session. Virtual steps are
// [category select, template steps..., review].
//
// Every fetch runs without the lock and carries the generation it started
// under; navigation bumps the generation, so late results are discarded
// instead of being applied to a state the user already left.
type Wizard struct {
	deps   Deps
	logger *zap.Logger

	mu         sync.Mutex
	id         string
	user       *domain.User
	mode       submission.Mode
	listingID  int64
	stored     domain.Values
	category   *domain.Category
	template   *domain.ResolvedTemplate
	form       *domain.FormState
	errors     map[string]string
	current    int
	generation uint64
	loading    bool
	closed     bool
	submitted  bool
	submitErr  string
}

func New(deps Deps, user *domain.User) *Wizard {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wizard{
		deps:   deps,
		logger: logger,
		user:   user,
		mode:   submission.ModeCreate,
		form:   domain.NewFormState(),
		errors: map[string]string{},
	}
}

func (w *Wizard) ID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}

func (w *Wizard) User() *domain.User {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.user
}

// Authenticate reports whether user may drive the session. A session stays
// bound to whoever started it, so an anonymous session only answers anonymous
// callers.
func (w *Wizard) Authenticate(user *domain.User) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.user == nil {
		return user == nil
	}
	return user != nil && w.user.ID == user.ID
}

// StepCount is the number of virtual steps: template steps plus category
// select and review.
func (w *Wizard) StepCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stepCount()
}

func (w *Wizard) stepCount() int {
	return len(w.steps()) + 2
}

func (w *Wizard) steps() []domain.Step {
	if w.template == nil {
		return nil
	}
	return w.template.Steps
}

func (w *Wizard) kind() StepKind {
	switch {
	case w.current == 0:
		return StepCategorySelect
	case w.current > len(w.steps()):
		return StepReview
	default:
		return StepTemplate
	}
}

// begin starts a fetch: it invalidates anything in flight and returns the new
// generation.
func (w *Wizard) begin() (uint64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	w.generation++
	w.loading = true
	return w.generation, nil
}

// finish ends the fetch started at gen. It reports false when the session has
// moved on since, in which case the caller must drop its result.
func (w *Wizard) finish(gen uint64) bool {
	if gen != w.generation || w.closed {
		return false
	}
	w.loading = false
	return true
}

// SelectCategory runs the entry gates for the category and, when they pass,
// resolves its template and opens the first template step.
//
// An edit session that went back to category select may only re-pick the
// listing's own category; it stays in edit mode and keeps its answers.
func (w *Wizard) SelectCategory(ctx context.Context, ref string) error {
	w.mu.Lock()
	if w.current != 0 {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	gen, err := w.begin()
	user, mode := w.user, w.mode
	var editing int64
	if mode == submission.ModeEdit && w.category != nil {
		editing = w.category.ID
	}
	w.mu.Unlock()
	if err != nil {
		return err
	}

	category, err := w.deps.Categories.ResolveCategory(ctx, ref)
	if err == nil && mode == submission.ModeEdit && category.ID != editing {
		err = ErrCategoryLocked
	}
	if err == nil {
		err = w.enter(ctx, gen, entry{category: category, user: user, mode: mode, keepForm: mode == submission.ModeEdit})
	}
	if err != nil {
		w.abandon(gen)
	}
	return err
}

// entry describes a category-select transition.
type entry struct {
	category *domain.Category
	user     *domain.User
	mode     submission.Mode
	// listing, when set, pre-populates the form instead of clearing it.
	listing *domain.Listing
	// keepForm re-enters without touching the answers given so far.
	keepForm bool
}

// enter runs the gates, fetches the template and, if gen is still current,
// applies the result in one critical section so no user edit can interleave
// with pre-population.
func (w *Wizard) enter(ctx context.Context, gen uint64, e entry) error {
	if err := w.checkGates(ctx, e.category, e.user, e.mode); err != nil {
		w.logger.Info("category selection blocked",
			zap.Int64("category_id", e.category.ID), zap.String("slug", e.category.Slug), zap.Error(err))
		return err
	}

	resolved, err := w.deps.Templates.ResolveForCategory(ctx, e.category)
	if err != nil {
		return fmt.Errorf("wizard: resolve template: %w", err)
	}
	if !resolved.Configured() {
		return ErrNoTemplate
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.finish(gen) {
		w.logger.Debug("discarding stale template", zap.Int64("category_id", e.category.ID))
		return ErrStale
	}
	w.category = e.category
	w.template = resolved
	w.mode = e.mode
	w.errors = map[string]string{}
	switch {
	case e.listing != nil:
		w.form = prepopulate(e.listing, resolved)
		w.listingID = e.listing.ID
		w.stored = e.listing.CustomFields.Clone()
	case !e.keepForm:
		w.form = domain.NewFormState()
	}
	w.current = 1
	return nil
}

// abandon clears the loading flag of a failed fetch unless a newer one has
// started.
func (w *Wizard) abandon(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finish(gen)
}

func (w *Wizard) checkGates(ctx context.Context, category *domain.Category, user *domain.User, mode submission.Mode) error {
	if category.IsRestricted && !user.IsVerifiedCompany() && !user.IsAdmin() {
		return ErrRestrictedCategory
	}
	if user == nil {
		return ErrUnauthenticated
	}
	if mode == submission.ModeEdit || w.deps.Quota == nil {
		return nil
	}
	access, err := w.deps.Quota.CheckSubscriptionAccess(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("wizard: check subscription: %w", err)
	}
	if remaining, ok := access.Remaining(category.Slug); ok && remaining == domain.QuotaExhausted {
		return ErrQuotaExhausted
	}
	return nil
}

// LoadForEdit switches the session to editing an existing listing: it selects
// the listing's category without the quota gate and pre-populates every
// template field. Uploaded media recorded in media_urls win over copies in
// custom_fields.
func (w *Wizard) LoadForEdit(ctx context.Context, listingID int64) error {
	w.mu.Lock()
	if w.current != 0 {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	gen, err := w.begin()
	user := w.user
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if err := w.loadForEdit(ctx, gen, user, listingID); err != nil {
		w.abandon(gen)
		return err
	}
	return nil
}

func (w *Wizard) loadForEdit(ctx context.Context, gen uint64, user *domain.User, listingID int64) error {
	listing, err := w.deps.Listings.GetListingByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("wizard: load listing %d: %w", listingID, err)
	}
	if user != nil && listing.UserID != user.ID && !user.IsAdmin() {
		return ErrForbidden
	}
	category, err := w.deps.Categories.GetCategory(ctx, listing.CategoryID)
	if err != nil {
		return fmt.Errorf("wizard: load category: %w", err)
	}
	return w.enter(ctx, gen, entry{category: category, user: user, mode: submission.ModeEdit, listing: listing})
}

func prepopulate(listing *domain.Listing, resolved *domain.ResolvedTemplate) *domain.FormState {
	form := domain.NewFormState()
	for _, name := range []string{"title", "description", "price", "type"} {
		if v, ok := listing.Property(name); ok {
			form.Set(name, v)
		}
	}
	for _, f := range resolved.AllFields() {
		if v, ok := resolve.ResolveValue(listing, f); ok && !v.IsNull() {
			form.Set(f.FieldName, v)
		}
	}
	media := resolve.MediaByField(listing.MediaURLs)
	for _, m := range listing.MediaURLs {
		if v, ok := media[m.FieldName]; ok {
			form.Set(m.FieldName, v)
		}
	}
	return form
}

// SetField records an answer. A non-empty value clears the field's error.
func (w *Wizard) SetField(name string, value domain.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setField(name, value)
}

// SetFields applies several answers at once; nothing is applied if any name
// is unknown.
func (w *Wizard) SetFields(values domain.Values) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	for name := range values {
		if !w.template.HasField(name) {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.setField(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wizard) editable() error {
	switch {
	case w.closed:
		return ErrClosed
	case w.loading:
		return ErrBusy
	case w.kind() != StepTemplate:
		return ErrInvalidTransition
	}
	return nil
}

func (w *Wizard) setField(name string, value domain.Value) error {
	if err := w.editable(); err != nil {
		return err
	}
	if !w.template.HasField(name) {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	w.form.Set(name, value)
	if !value.IsEmpty() {
		delete(w.errors, name)
	}
	return nil
}

// Next validates the current template step and advances to the next one, or
// to review after the last step.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if err := w.validateStep(w.current); err != nil {
		return err
	}
	w.current++
	return nil
}

// validateStep checks the required visible fields of template step i
// (1-based). Errors for the step's fields are replaced either way.
func (w *Wizard) validateStep(i int) error {
	step := w.steps()[i-1]
	missing := map[string]string{}
	for _, f := range step.Fields {
		delete(w.errors, f.FieldName)
		if !f.MustAnswer() {
			continue
		}
		if v, ok := w.form.Get(f.FieldName); !ok || v.IsEmpty() {
			missing[f.FieldName] = fmt.Sprintf("%s is required", f.Label())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	for name, msg := range missing {
		w.errors[name] = msg
	}
	return &ValidationError{Step: i, Fields: missing}
}

// Back moves one step back without validating.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.current == 0 {
		return ErrInvalidTransition
	}
	w.generation++
	w.loading = false
	w.current--
	return nil
}

// Abort is navigation away from the wizard. In-flight fetches are discarded
// and the session rejects further calls.
func (w *Wizard) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	w.loading = false
	w.closed = true
}

// Submit maps the form onto a listing payload and writes it. On failure the
// session stays on review with the form intact so the user can retry.
func (w *Wizard) Submit(ctx context.Context) (int64, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrClosed
	}
	if w.loading {
		w.mu.Unlock()
		return 0, ErrBusy
	}
	if w.submitted {
		w.mu.Unlock()
		return 0, ErrAlreadySubmitted
	}
	if w.kind() != StepReview {
		w.mu.Unlock()
		return 0, ErrInvalidTransition
	}
	for i := 1; i <= len(w.steps()); i++ {
		if err := w.validateStep(i); err != nil {
			w.current = i
			w.mu.Unlock()
			return 0, err
		}
	}
	opts := submission.Options{Mode: w.mode, ExpiryDays: w.deps.ExpiryDays, Now: w.deps.Now, Existing: w.stored}
	if w.user != nil {
		opts.UserID = w.user.ID
	}
	payload, err := submission.Map(w.form.Clone(), w.category, w.template, opts)
	if err != nil {
		w.mu.Unlock()
		return 0, err
	}
	mode, listingID := w.mode, w.listingID
	gen, _ := w.begin()
	w.submitErr = ""
	w.mu.Unlock()

	id := listingID
	if mode == submission.ModeEdit {
		err = w.deps.Listings.UpdateListing(ctx, listingID, payload)
	} else {
		id, err = w.deps.Listings.CreateListing(ctx, payload)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.finish(gen)
	if err != nil {
		w.logger.Error("listing submission failed", zap.String("session", w.id), zap.Error(err))
		w.submitErr = err.Error()
		return 0, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	w.submitted = true
	w.listingID = id
	w.logger.Info("listing submitted",
		zap.String("session", w.id), zap.Int64("listing_id", id), zap.Bool("edit", mode == submission.ModeEdit))
	return id, nil
}

// View is a point-in-time snapshot of the session.
type View struct {
	ID          string                   `json:"id"`
	Mode        string                   `json:"mode"`
	Step        int                      `json:"step"`
	StepCount   int                      `json:"step_count"`
	StepKind    StepKind                 `json:"step_kind"`
	Category    *domain.Category         `json:"category,omitempty"`
	Template    *domain.ResolvedTemplate `json:"template,omitempty"`
	CurrentStep *domain.Step             `json:"current_step,omitempty"`
	Form        domain.Values            `json:"form"`
	Errors      map[string]string        `json:"errors"`
	Loading     bool                     `json:"loading"`
	ListingID   int64                    `json:"listing_id,omitempty"`
	Submitted   bool                     `json:"submitted"`
	SubmitError string                   `json:"submit_error,omitempty"`
}

func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		ID:          w.id,
		Mode:        "create",
		Step:        w.current,
		StepCount:   w.stepCount(),
		StepKind:    w.kind(),
		Category:    w.category,
		Template:    w.template,
		Form:        w.form.Values(),
		Errors:      make(map[string]string, len(w.errors)),
		Loading:     w.loading,
		ListingID:   w.listingID,
		Submitted:   w.submitted,
		SubmitError: w.submitErr,
	}
	if w.mode == submission.ModeEdit {
		v.Mode = "edit"
	}
	if v.StepKind == StepTemplate {
		st := w.steps()[w.current-1]
		v.CurrentStep = &st
	}
	for k, msg := range w.errors {
		v.Errors[k] = msg
	}
	return v
}

// Value returns the current answer for a field.
func (w *Wizard) Value(name string) (domain.Value, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form.Get(name)
}
