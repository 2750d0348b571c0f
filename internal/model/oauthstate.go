package model

import "time"

// OAuthState is the ephemeral anti-forgery record minted when a federated
// login flow starts. The State value is embedded in the provider redirect and
// must come back unchanged on the callback. Consumption deletes the record,
// so a state value is valid at most once; records past ExpiresAt are dead
// even if never consumed.
type OAuthState struct {
	State     string    `db:"state"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}
