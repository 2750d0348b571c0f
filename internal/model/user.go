// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents an account. Accounts come from two places: password
// registration (PasswordHash set, GitHubID zero) and GitHub federated login
// (GitHubID set, PasswordHash empty). A password account that later logs in
// via GitHub with the same email gets its GitHubID linked in place.
//
// RefreshToken is the single live refresh-token slot. Every successful login,
// registration, OAuth callback or refresh overwrites it; logout clears it.
// Holding exactly one live value per user means a rotated or replaced token
// can never be presented again.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"` // empty for OAuth-only accounts
	GitHubID     int64     `json:"-"         db:"github_id"`     // 0 when not linked
	RefreshToken string    `json:"-"         db:"refresh_token"` // empty when logged out
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the shape returned by auth endpoints. Everything else on User
// is internal.
type PublicUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{Username: u.Username, Email: u.Email}
}
