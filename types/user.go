package types

import (
	"strings"
	"time"
)

// Role is the account type of a user.
type Role string

const (
	RoleAdopter Role = "Adopter"
	RoleOwner   Role = "Owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdopter || r == RoleOwner
}

// ParseRole matches a role name case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch {
	case strings.EqualFold(strings.TrimSpace(raw), string(RoleAdopter)):
		return RoleAdopter, true
	case strings.EqualFold(strings.TrimSpace(raw), string(RoleOwner)):
		return RoleOwner, true
	default:
		return "", false
	}
}

// User represents an account in the system.
// It contains identity, role, contact details and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// FullName is the user's display name.
	FullName string `json:"full_name" db:"full_name"`

	// Email is the user's login address. It is stored lower-cased and is unique.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Rows imported from the legacy system may still hold plain text
	// until the next successful login re-hashes them.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role decides which adoption-side operations the user may perform.
	Role Role `json:"role" db:"role"`

	// IsActive is false for deactivated accounts; such accounts cannot authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Address is an optional postal address.
	Address string `json:"address,omitempty" db:"address"`

	// Age is optional; nil when the user did not provide it.
	Age *int `json:"age,omitempty" db:"age"`

	// EmailVerified records whether the user confirmed their address.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileUpdate holds the optional fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FullName *string
	Age      *int
	Phone    *string
	Address  *string
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p.FullName == nil && p.Age == nil && p.Phone == nil && p.Address == nil
}

// Apply copies the set fields onto user.
func (p ProfileUpdate) Apply(user User) User {
	if p.FullName != nil {
		user.FullName = *p.FullName
	}
	if p.Age != nil {
		age := *p.Age
		user.Age = &age
	}
	if p.Phone != nil {
		user.Phone = *p.Phone
	}
	if p.Address != nil {
		user.Address = *p.Address
	}
	return user
}

// UserStats summarises a user's activity for the dashboard.
type UserStats struct {
	Role     Role      `json:"role"`
	JoinDate time.Time `json:"join_date"`

	// Owner-side counts.
	TotalPets        int `json:"total_pets,omitempty"`
	AvailablePets    int `json:"available_pets,omitempty"`
	AdoptedPets      int `json:"adopted_pets,omitempty"`
	ReceivedRequests int `json:"received_requests,omitempty"`

	// Adopter-side counts.
	TotalRequests    int `json:"total_requests,omitempty"`
	PendingRequests  int `json:"pending_requests,omitempty"`
	ApprovedRequests int `json:"approved_requests,omitempty"`
	RejectedRequests int `json:"rejected_requests,omitempty"`

	TotalActivity int `json:"total_activity"`
}
