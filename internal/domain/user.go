package domain

// Account metadata values issued by the hosted auth provider.
const (
	AccountTypeCompany         = "company"
	VerificationStatusVerified = "verified"
	RoleAdmin                  = "admin"
)

// User is the authenticated principal as seen by this service.
type User struct {
	ID                 string `json:"id"`
	AccountType        string `json:"account_type,omitempty"`
	VerificationStatus string `json:"verification_status,omitempty"`
	Role               string `json:"role,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsVerifiedCompany reports whether the user may post into restricted categories
// by virtue of a verified company account.
func (u *User) IsVerifiedCompany() bool {
	return u != nil && u.AccountType == AccountTypeCompany && u.VerificationStatus == VerificationStatusVerified
}

// Post quota sentinels returned by the subscription collaborator.
const (
	QuotaUnlimited = -1
	QuotaExhausted = 0
)

// SubscriptionAccess maps a category slug to the number of posts remaining.
type SubscriptionAccess struct {
	CanPost map[string]int `json:"can_post"`
}

// Remaining returns the remaining post count for the slug; ok is false when
// the subscription says nothing about the category.
func (a *SubscriptionAccess) Remaining(slug string) (int, bool) {
	if a == nil || a.CanPost == nil {
		return 0, false
	}
	n, ok := a.CanPost[slug]
	return n, ok
}
