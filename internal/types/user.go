package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of access levels a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// User is the canonical identity record owned by the user directory.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never leaves the service
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"is_verified"`
	PhotoURL     *string   `json:"photo_url,omitempty"`
	PhotoRef     *string   `json:"-"` // media handle, needed to delete/replace the asset
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the safe projection of a User sent to clients.
type PublicUser struct {
	ID         uuid.UUID `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Name       string    `json:"name" example:"Jane Doe"`
	Email      string    `json:"email" example:"jane@example.com"`
	Role       Role      `json:"role" example:"user"`
	IsVerified bool      `json:"is_verified" example:"true"`
	PhotoURL   *string   `json:"photo_url,omitempty" example:"https://cdn.example.com/profile-photos/abc.png"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Public strips sensitive fields from the record.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		PhotoURL:   u.PhotoURL,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// PublicUsers projects a slice of records.
func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}

// NewUserParams carries the fields needed to create a user record.
type NewUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role // empty means RoleUser
	PhotoURL     *string
	PhotoRef     *string
}

// UserPatch holds the fields a directory update may change.
// A nil pointer leaves the stored value untouched.
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *Role
	PhotoURL     *string
	PhotoRef     *string
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil &&
		p.Role == nil && p.PhotoURL == nil && p.PhotoRef == nil
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
