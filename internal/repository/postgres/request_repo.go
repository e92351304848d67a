package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/domain"
)

// RequestRepository handles exchange request data operations in Postgres
type RequestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

// GetByID retrieves an exchange request with both party names joined in
func (r *RequestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (*domain.ExchangeRequest, error) {
	query := `
		SELECT r.request_id, r.sender_id, r.receiver_id,
		       us.name AS sender_name, ur.name AS receiver_name,
		       r.skill_offer, r.skill_need, r.status, r.created_at
		FROM requests r
		INNER JOIN users us ON r.sender_id = us.user_id
		INNER JOIN users ur ON r.receiver_id = ur.user_id
		WHERE r.request_id = $1
	`

	req := &domain.ExchangeRequest{}
	err := r.pool.QueryRow(ctx, query, requestID).Scan(
		&req.RequestID,
		&req.SenderID,
		&req.ReceiverID,
		&req.SenderName,
		&req.ReceiverName,
		&req.SkillOffer,
		&req.SkillNeed,
		&req.Status,
		&req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return req, nil
}
