package domain

import "time"

// Category represents a marketplace vertical (homes, cars, jobs, tenders...).
// The json tags correspond to the fields expected in API responses/requests.
type Category struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description,omitempty"`
	IsRestricted bool      `json:"is_restricted"` // Only verified companies and admins may post
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
