package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/domain"
)

// UserRepository handles user data operations in Postgres
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// SetOnlineStatus updates the informational online flag and last-seen stamp.
// The in-memory presence registry is authoritative; this write exists so
// listings rendered outside the realtime path can show presence.
func (r *UserRepository) SetOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool) error {
	query := `
		UPDATE users
		SET is_online = $2, last_seen = NOW()
		WHERE user_id = $1
	`

	_, err := r.pool.Exec(ctx, query, userID, isOnline)
	if err != nil {
		return fmt.Errorf("failed to set online status: %w", err)
	}

	return nil
}

// GetOnlineUsers retrieves users currently flagged online, excluding banned
// accounts and admins
func (r *UserRepository) GetOnlineUsers(ctx context.Context) ([]*domain.OnlineUser, error) {
	query := `
		SELECT user_id, name, email
		FROM users
		WHERE is_online = TRUE AND role = 'user' AND is_banned = FALSE
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.OnlineUser, 0)
	for rows.Next() {
		user := &domain.OnlineUser{}
		if err := rows.Scan(&user.UserID, &user.Name, &user.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
