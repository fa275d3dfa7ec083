package directory

import "time"

// MaxPageSize bounds a single listing request.
const MaxPageSize = 1000

// Account is one identity held by the provider. Only the public attributes are
// decoded; provider metadata never reaches this type.
type Account struct {
	ID           string     `json:"id"`
	Email        *string    `json:"email"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at"`
	BannedUntil  *time.Time `json:"banned_until"`
	ConfirmedAt  *time.Time `json:"confirmed_at"`
}

// Banned reports whether the account carries a ban marker.
func (a Account) Banned() bool {
	return a.BannedUntil != nil
}

// EmailAddress returns the email, or "" when the provider has none.
func (a Account) EmailAddress() string {
	if a.Email == nil {
		return ""
	}
	return *a.Email
}

// Confirmed reports whether the account's identity is confirmed.
func (a Account) Confirmed() bool {
	return a.ConfirmedAt != nil
}
