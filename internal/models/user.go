package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name"`
	AvatarURL    *string   `json:"avatar_url"`
	Points       int64     `json:"points"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Summary returns the subset of profile fields embedded in item and swap listings.
func (u User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

// UserSummary is the joined owner/requester view attached to items and swaps.
type UserSummary struct {
	ID        string  `json:"id,omitempty"`
	FullName  *string `json:"full_name"`
	Email     string  `json:"email,omitempty"`
	AvatarURL *string `json:"avatar_url"`
}
