package model

import "time"

// TokenData contains the data stored with a session token. The role is not
// stored here; it is looked up from the user directory on every request so
// role changes take effect immediately.
type TokenData struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
