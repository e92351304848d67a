package domain

import (
	"time"

	"github.com/google/uuid"
)

// BlockedUser represents a directed block relationship.
// Interaction checks query it symmetrically: a block in either direction
// forbids messaging and calling between the two users.
type BlockedUser struct {
	BlockerID uuid.UUID `json:"blocker_id"`
	BlockedID uuid.UUID `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}
