// Package submission turns wizard form state into the listing persistence
// shape.
package submission

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"classifieds-template-service/internal/domain"
	"classifieds-template-service/internal/resolve"
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

const (
	DefaultExpiryDays = 30
	ExpiresAtKey      = "expires_at"
)

// promoted keys become top-level payload columns.
var promoted = map[string]bool{"title": true, "description": true, "price": true, "type": true}

// mediaOnly keys reach the payload only through media_urls.
var mediaOnly = map[string]bool{"images": true, "video": true}

// ownerImmutable keys are never written by an owner's edit.
var ownerImmutable = []string{"status", "created_at", "user_id"}

var ErrNoCategory = errors.New("submission: category is required")

type Options struct {
	Mode       Mode
	UserID     string
	ExpiryDays int
	Now        func() time.Time
	// Existing is the stored custom_fields of the listing being edited. Keys
	// the form does not carry, such as expires_at, are written back unchanged.
	Existing domain.Values
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Map builds the create or update payload for the form state.
func Map(form *domain.FormState, category *domain.Category, resolved *domain.ResolvedTemplate, opts Options) (*domain.ListingPayload, error) {
	if category == nil {
		return nil, ErrNoCategory
	}
	if form == nil {
		form = domain.NewFormState()
	}

	payload := &domain.ListingPayload{
		CategoryID:   category.ID,
		CustomFields: domain.Values{},
		MediaURLs:    []domain.MediaURL{},
	}
	if resolved != nil && resolved.Template != nil {
		id := resolved.Template.ID
		payload.TemplateID = &id
	}

	var priceValue domain.Value
	for _, key := range form.Keys() {
		v, _ := form.Get(key)
		switch {
		case promoted[key]:
			switch key {
			case "title":
				payload.Title = strings.TrimSpace(v.Text())
			case "description":
				payload.Description = v.Text()
			case "price":
				priceValue = v
			case "type":
				if t := strings.TrimSpace(v.Text()); t != "" {
					payload.Type = &t
				}
			}
		case mediaOnly[key]:
		default:
			payload.CustomFields[key] = v
		}
	}

	for _, f := range resolved.AllFields() {
		if !f.FieldType.IsMedia() {
			continue
		}
		v, ok := form.Get(f.FieldName)
		if !ok {
			continue
		}
		for _, url := range resolve.URLs(v) {
			payload.MediaURLs = append(payload.MediaURLs, domain.MediaURL{
				Type:      string(f.FieldType),
				URL:       url,
				FieldName: f.FieldName,
			})
		}
	}

	if payload.Title == "" {
		payload.Title = fallbackTitle(form, category)
	}
	if strings.TrimSpace(payload.Description) == "" {
		payload.Description = payload.Title
	}
	payload.Price = coercePrice(priceValue)

	switch opts.Mode {
	case ModeCreate:
		days := opts.ExpiryDays
		if days <= 0 {
			days = DefaultExpiryDays
		}
		now := opts.now().UTC()
		payload.CustomFields[ExpiresAtKey] = domain.String(now.AddDate(0, 0, days).Format(time.RFC3339))
		status := domain.StatusPending
		payload.Status = &status
		payload.CreatedAt = &now
		if opts.UserID != "" {
			uid := opts.UserID
			payload.UserID = &uid
		}
	case ModeEdit:
		for key, v := range opts.Existing {
			if promoted[key] || mediaOnly[key] {
				continue
			}
			if _, ok := payload.CustomFields[key]; !ok {
				payload.CustomFields[key] = v
			}
		}
		for _, key := range ownerImmutable {
			delete(payload.CustomFields, key)
		}
		payload.Status = nil
		payload.CreatedAt = nil
		payload.UserID = nil
	}
	return payload, nil
}

// fallbackTitle picks the first string answer longer than three characters in
// the order the user gave answers.
func fallbackTitle(form *domain.FormState, category *domain.Category) string {
	for _, key := range form.Keys() {
		v, _ := form.Get(key)
		s, ok := v.Str()
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > 3 {
			return s
		}
	}
	return category.Name + " Ad"
}

func coercePrice(v domain.Value) float64 {
	switch v.Kind() {
	case domain.KindNumber:
		n, _ := v.Num()
		return n
	case domain.KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	}
	return 0
}
