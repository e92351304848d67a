package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform member
type User struct {
	UserID    uuid.UUID  `json:"user_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"` // user, admin
	IsBanned  bool       `json:"is_banned"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// OnlineUser is the reduced shape returned by online-user listings
type OnlineUser struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}
