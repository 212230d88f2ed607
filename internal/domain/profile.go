package domain

import "time"

// Profile represents a registered user.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProfileUpdate lists the columns a partial update may change. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Email        *string
	Name         *string
	PasswordHash *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Email == nil && u.Name == nil && u.PasswordHash == nil
}
