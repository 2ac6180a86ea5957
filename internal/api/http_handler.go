package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"classifieds-template-service/internal/catalog"
	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/store"
	"classifieds-template-service/internal/template"
	"classifieds-template-service/internal/wizard"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	backend  Backend
	auth     *Authenticator
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(backend Backend, auth *Authenticator) *HTTPHandler {
	return &HTTPHandler{
		backend:  backend,
		auth:     auth,
		validate: validator.New(),
		logger:   backend.logger(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Upsell bool              `json:"upsell,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// respondWithDomainError maps service errors onto status codes.
func (h *HTTPHandler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "Validation failed", Fields: verr.Fields})
	case errors.Is(err, catalog.ErrCategoryNotFound), errors.Is(err, store.ErrCategoryNotFound),
		errors.Is(err, store.ErrListingNotFound), errors.Is(err, wizard.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wizard.ErrUnauthenticated):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, wizard.ErrRestrictedCategory), errors.Is(err, wizard.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, wizard.ErrQuotaExhausted):
		respondWithJSON(w, http.StatusPaymentRequired, ErrorResponse{Error: err.Error(), Upsell: true})
	case errors.Is(err, wizard.ErrNoTemplate), errors.Is(err, wizard.ErrBusy), errors.Is(err, wizard.ErrStale),
		errors.Is(err, wizard.ErrInvalidTransition), errors.Is(err, wizard.ErrClosed),
		errors.Is(err, wizard.ErrCategoryLocked), errors.Is(err, wizard.ErrAlreadySubmitted):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wizard.ErrUnknownField):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(fallback, zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func listingIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "listingId"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid listing ID format")
		return 0, false
	}
	return id, true
}

// --- Category Handlers ---

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.backend.Catalog.ListCategories(r.Context())
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to retrieve categories")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": categories})
}

func (h *HTTPHandler) ResolveCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.backend.Catalog.ResolveCategory(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to resolve category")
		return
	}
	respondWithJSON(w, http.StatusOK, category)
}

func (h *HTTPHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	category, resolved, err := h.backend.templateFor(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to resolve template")
		return
	}
	if !resolved.Configured() {
		respondWithError(w, http.StatusNotFound, wizard.ErrNoTemplate.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"category":    category,
		"template":    resolved.Template,
		"steps":       resolved.Steps,
		"shared_keys": resolved.SharedKeys,
	})
}

// FieldsQuery selects a placement section.
type FieldsQuery struct {
	Section string `validate:"required,oneof=header main sidebar"`
}

func (h *HTTPHandler) GetTemplateFields(w http.ResponseWriter, r *http.Request) {
	query := FieldsQuery{Section: r.URL.Query().Get("section")}
	if query.Section == "" {
		query.Section = domain.SectionMain
	}
	if err := h.validate.Struct(query); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	_, resolved, err := h.backend.templateFor(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to resolve template")
		return
	}
	fields := template.FieldsBySection(resolved, query.Section)
	if fields == nil {
		fields = []domain.Field{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"section": query.Section, "fields": fields})
}

// --- Listing Handlers ---

func (h *HTTPHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	params := store.ListListingsParams{Limit: limit, Offset: (page - 1) * limit}
	if c := q.Get("category_id"); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil || id <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid category_id")
			return
		}
		params.CategoryID = &id
	}
	status := domain.StatusApproved
	if s := q.Get("status"); s != "" {
		if !UserFromContext(r.Context()).IsAdmin() {
			respondWithError(w, http.StatusForbidden, "Only admins may filter by status")
			return
		}
		status = s
	}
	params.Status = &status

	listings, total, err := h.backend.Listings.ListListings(r.Context(), params)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to retrieve listings")
		return
	}
	if listings == nil {
		listings = []domain.Listing{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	type pagination struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	}
	respondWithJSON(w, http.StatusOK, struct {
		Data       []domain.Listing `json:"data"`
		Pagination pagination       `json:"pagination"`
	}{
		Data:       listings,
		Pagination: pagination{Page: page, Limit: limit, TotalItems: total, TotalPages: totalPages},
	})
}

func (h *HTTPHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.backend.detail(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to retrieve listing")
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	user := UserFromContext(r.Context())
	listing, err := h.backend.Listings.GetListingByID(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to retrieve listing")
		return
	}
	if listing.UserID != user.ID && !user.IsAdmin() {
		respondWithError(w, http.StatusForbidden, wizard.ErrForbidden.Error())
		return
	}
	if err := h.backend.Listings.DeleteListing(r.Context(), id); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to delete listing")
		return
	}
	h.logger.Info("listing deleted", zap.Int64("listing_id", id), zap.String("by", user.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ReviewListing(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.backend.review(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to retrieve listing")
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// ListingStatusInput is an admin moderation decision.
type ListingStatusInput struct {
	Status    string `json:"status" validate:"required,oneof=pending approved rejected"`
	IsPremium *bool  `json:"is_premium"`
}

func (h *HTTPHandler) UpdateListingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	var input ListingStatusInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	if err := h.backend.Listings.UpdateListingStatus(r.Context(), id, input.Status, input.IsPremium); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to update listing status")
		return
	}
	h.logger.Info("listing status changed", zap.Int64("listing_id", id), zap.String("status", input.Status))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": input.Status, "is_premium": input.IsPremium})
}

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.auth.Middleware)
		}

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Get("/resolve/{ref}", h.ResolveCategory)
			r.Get("/{ref}/template", h.GetTemplate)
			r.Get("/{ref}/template/fields", h.GetTemplateFields)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.ListListings)
			r.Get("/{listingId}", h.GetListing)
			r.With(RequireUser).Delete("/{listingId}", h.DeleteListing)
		})

		r.Route("/admin/listings/{listingId}", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/review", h.ReviewListing)
			r.Patch("/status", h.UpdateListingStatus)
		})

		h.registerWizardRoutes(r)
	})
}
