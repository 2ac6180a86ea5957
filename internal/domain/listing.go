package domain

import "time"

// Listing lifecycle states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// MediaURL records an uploaded asset and the template field it belongs to.
type MediaURL struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	FieldName string `json:"field_name,omitempty"`
}

// Listing is the persisted user submission. Non-promoted field values live only
// in CustomFields and MediaURLs.
type Listing struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	CategoryID   int64      `json:"category_id"`
	TemplateID   *int64     `json:"template_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Price        float64    `json:"price"`
	Type         *string    `json:"type,omitempty"`
	Status       string     `json:"status"`
	IsPremium    bool       `json:"is_premium"`
	Views        int64      `json:"views"`
	CustomFields Values     `json:"custom_fields"`
	MediaURLs    []MediaURL `json:"media_urls"`
	// Details is a legacy value bag some older listings carry; nil when absent.
	Details Values `json:"details,omitempty"`

	// Legacy image columns kept for listings created before templates existed.
	ImageURL *string  `json:"image_url,omitempty"`
	Image    *string  `json:"image,omitempty"`
	Images   []string `json:"images,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Property returns a top-level listing attribute by its storage name, the way
// a dynamic record would expose it. ok is false for unknown names and for
// optional columns that are unset.
func (l *Listing) Property(name string) (Value, bool) {
	if l == nil {
		return Value{}, false
	}
	switch name {
	case "id":
		return Number(float64(l.ID)), true
	case "user_id":
		return String(l.UserID), true
	case "category_id":
		return Number(float64(l.CategoryID)), true
	case "template_id":
		if l.TemplateID == nil {
			return Value{}, false
		}
		return Number(float64(*l.TemplateID)), true
	case "title":
		return String(l.Title), true
	case "description":
		return String(l.Description), true
	case "price":
		return Number(l.Price), true
	case "type":
		if l.Type == nil {
			return Value{}, false
		}
		return String(*l.Type), true
	case "status":
		return String(l.Status), true
	case "is_premium":
		return Bool(l.IsPremium), true
	case "views":
		return Number(float64(l.Views)), true
	case "image_url":
		if l.ImageURL == nil {
			return Value{}, false
		}
		return String(*l.ImageURL), true
	case "image":
		if l.Image == nil {
			return Value{}, false
		}
		return String(*l.Image), true
	case "images":
		if l.Images == nil {
			return Value{}, false
		}
		return Strings(l.Images...), true
	case "created_at":
		return String(l.CreatedAt.Format(time.RFC3339)), true
	case "updated_at":
		return String(l.UpdatedAt.Format(time.RFC3339)), true
	}
	return Value{}, false
}

// ListingPayload is the persistence shape produced by the submission mapper.
// Nil pointer columns are left untouched on update.
type ListingPayload struct {
	CategoryID   int64      `json:"category_id"`
	TemplateID   *int64     `json:"template_id,omitempty"`
	UserID       *string    `json:"user_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Price        float64    `json:"price"`
	Type         *string    `json:"type,omitempty"`
	Status       *string    `json:"status,omitempty"`
	CustomFields Values     `json:"custom_fields"`
	MediaURLs    []MediaURL `json:"media_urls"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}
