// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// UserType is the account role stored on a user.
type UserType string

// User types. Admin is the only type carrying elevated privileges.
const (
	UserTypeClient     UserType = "Client"
	UserTypeEnterprise UserType = "Enterprise"
	UserTypeBot        UserType = "Bot"
	UserTypeSuperUser  UserType = "SuperUser"
	UserTypeAdmin      UserType = "Admin"
)

// UserTypes contains every valid user type.
var UserTypes = []UserType{
	UserTypeClient,
	UserTypeEnterprise,
	UserTypeBot,
	UserTypeSuperUser,
	UserTypeAdmin,
}

// SelfServiceUserTypes are the types a caller may pick at public registration.
var SelfServiceUserTypes = []UserType{
	UserTypeClient,
	UserTypeEnterprise,
	UserTypeBot,
	UserTypeSuperUser,
}

// IsValid reports whether t is a known user type.
func (t UserType) IsValid() bool {
	return slices.Contains(UserTypes, t)
}

// User represents a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	UserType     UserType  `json:"user_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the Admin role.
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}

// UserRecord is a user joined with its credential record.
// Credential is nil only if the store holds a user without one.
type UserRecord struct {
	User
	Credential *Credential
}

// UserUpdate carries the mutable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	FullName *string
	UserType *UserType
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.FullName == nil && u.UserType == nil
}

// Profile is the public view of a user. It never carries a password.
type Profile struct {
	ID               uuid.UUID        `json:"id"`
	FullName         string           `json:"full_name"`
	Email            string           `json:"email"`
	UserType         UserType         `json:"user_type"`
	APIKey           string           `json:"api_key,omitempty"`
	SubscriptionType SubscriptionType `json:"subscription_type,omitempty"`
	RateLimit        *int             `json:"rate_limit,omitempty"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ToProfile converts a record to its public profile.
// The api key is only ever exposed in masked form.
func (r *UserRecord) ToProfile() Profile {
	p := Profile{
		ID:        r.ID,
		FullName:  r.FullName,
		Email:     r.Email,
		UserType:  r.UserType,
		CreatedAt: r.CreatedAt,
	}
	if r.Credential != nil {
		rateLimit := r.Credential.RateLimit
		expiresAt := r.Credential.ExpiresAt
		p.APIKey = r.Credential.MaskedKey()
		p.SubscriptionType = r.Credential.SubscriptionType
		p.RateLimit = &rateLimit
		p.ExpiresAt = &expiresAt
	}
	return p
}
