package auth

import (
	"time"

	"docuflow/portal/internal/session"
)

type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"`
	Role         session.Role `json:"role"`
}

// Session is the server-side half of a login; the client keeps the tokens in
// its session record.
type Session struct {
	ID               string
	AccessToken      string
	RefreshToken     string
	UserID           string
	Username         string
	Role             session.Role
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Record is what the client stores after logging in.
func (s Session) Record() session.Record {
	return session.Record{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User: session.User{
			ID:       s.UserID,
			Username: s.Username,
			Role:     s.Role,
		},
	}
}

type SessionView struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Username  string       `json:"username"`
	Role      session.Role `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}
