package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Keys of the session record inside a client's key-value namespace.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Cookies mirrored from the stored record.
const (
	CookieAuthenticated = "isAuthenticated"
	CookieRole          = "user_role"
	CookieRoleHint      = "x-user-role"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
}

type Record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

func (r Record) validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return fmt.Errorf("%w: access token is empty", ErrMalformedSession)
	}
	if !r.User.Role.Valid() {
		return fmt.Errorf("%w: %w", ErrMalformedSession, ErrUnknownRole)
	}
	return nil
}

func decodeUser(raw string) (User, error) {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, fmt.Errorf("%w: decode user: %v", ErrMalformedSession, err)
	}
	role, err := ParseRole(string(u.Role))
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrMalformedSession, err)
	}
	u.Role = role
	return u, nil
}
