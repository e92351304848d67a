package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BlockedUserRepository handles blocked user data operations in Postgres
type BlockedUserRepository struct {
	pool *pgxpool.Pool
}

// NewBlockedUserRepository creates a new BlockedUserRepository
func NewBlockedUserRepository(pool *pgxpool.Pool) *BlockedUserRepository {
	return &BlockedUserRepository{pool: pool}
}

// BlockExistsBetween reports whether a block relation exists between two
// users in either direction. This is the symmetric check every interaction
// (message send, call initiate) must pass.
func (r *BlockedUserRepository) BlockExistsBetween(ctx context.Context, user1ID, user2ID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blocked_users
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, user1ID, user2ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check block relation: %w", err)
	}

	return exists, nil
}
