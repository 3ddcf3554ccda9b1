package entity

import "time"

// User is an account row in the `users` table. Email is unique across all
// users; the hash never leaves the service layer.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Profile is the sanitized projection returned to callers.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile strips credentials from a full user row.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt}
}
