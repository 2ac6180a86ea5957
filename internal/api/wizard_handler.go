package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/wizard"
)

// WizardStartInput opens a session; a listing id opens it in edit mode.
type WizardStartInput struct {
	ListingID *int64 `json:"listing_id" validate:"omitempty,gt=0"`
}

type WizardCategoryInput struct {
	Category string `json:"category" validate:"required,max=255"`
}

type WizardFieldsInput struct {
	Fields domain.Values `json:"fields" validate:"required,min=1"`
}

func (h *HTTPHandler) registerWizardRoutes(r chi.Router) {
	r.Route("/wizard", func(r chi.Router) {
		r.Post("/", h.StartWizard)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", h.GetWizard)
			r.Delete("/", h.AbortWizard)
			r.Post("/category", h.SelectWizardCategory)
			r.Patch("/fields", h.SetWizardFields)
			r.Post("/next", h.NextWizardStep)
			r.Post("/back", h.PreviousWizardStep)
			r.Post("/submit", h.SubmitWizard)
		})
	})
}

// session looks up the wizard and checks the caller may drive it.
func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
	wz, err := h.backend.Sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to load wizard session")
		return nil, false
	}
	if !wz.Authenticate(UserFromContext(r.Context())) {
		respondWithError(w, http.StatusForbidden, "Wizard session belongs to another user")
		return nil, false
	}
	return wz, true
}

func (h *HTTPHandler) StartWizard(w http.ResponseWriter, r *http.Request) {
	var input WizardStartInput
	if r.ContentLength != 0 {
		if !h.decodeAndValidate(w, r, &input) {
			return
		}
	}

	wz := wizard.New(h.backend.Wizard, UserFromContext(r.Context()))
	id := h.backend.Sessions.Add(wz)
	if input.ListingID != nil {
		if err := wz.LoadForEdit(r.Context(), *input.ListingID); err != nil {
			_ = h.backend.Sessions.Remove(id)
			h.respondWithDomainError(w, r, err, "Failed to open listing for editing")
			return
		}
	}
	h.logger.Debug("wizard session started", zap.String("session", id), zap.Bool("edit", input.ListingID != nil))
	respondWithJSON(w, http.StatusCreated, wz.View())
}

func (h *HTTPHandler) GetWizard(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, wz.View())
}

func (h *HTTPHandler) AbortWizard(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	if err := h.backend.Sessions.Remove(chi.URLParam(r, "sessionId")); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to close wizard session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) SelectWizardCategory(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.session(w, r)
	if !ok {
		return
	}
	var input WizardCategoryInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	if err := wz.SelectCategory(r.Context(), input.Category); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to select category")
		return
	}
	respondWithJSON(w, http.StatusOK, wz.View())
}

func (h *HTTPHandler) SetWizardFields(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.session(w, r)
	if !ok {
		return
	}
	var input WizardFieldsInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	if err := wz.SetFields(input.Fields); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to update fields")
		return
	}
	respondWithJSON(w, http.StatusOK, wz.View())
}

func (h *HTTPHandler) NextWizardStep(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := wz.Next(); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to advance")
		return
	}
	respondWithJSON(w, http.StatusOK, wz.View())
}

func (h *HTTPHandler) PreviousWizardStep(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := wz.Back(); err != nil {
		h.respondWithDomainError(w, r, err, "Failed to go back")
		return
	}
	respondWithJSON(w, http.StatusOK, wz.View())
}

func (h *HTTPHandler) SubmitWizard(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := wz.Submit(r.Context())
	if err != nil {
		h.respondWithDomainError(w, r, err, "Failed to submit listing")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"listing_id": id, "session": wz.View()})
}
