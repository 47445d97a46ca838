package models

import "time"

// User represents a user account.
type User struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	EmailNotifications bool      `json:"emailNotifications"`
	PasswordHash       string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
}

// DisplayName returns the name used to greet the user.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
