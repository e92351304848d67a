package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/domain"
)

// MessageRepository handles chat message data operations in Postgres
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create appends a message to a room's history and returns the stored row
func (r *MessageRepository) Create(ctx context.Context, requestID, senderID uuid.UUID, body string) (*domain.ChatMessage, error) {
	query := `
		INSERT INTO messages (message_id, request_id, sender_id, message, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`

	msg := &domain.ChatMessage{
		MessageID: uuid.New(),
		RequestID: requestID,
		SenderID:  senderID,
		Body:      body,
	}

	var createdAt time.Time
	err := r.pool.QueryRow(ctx, query, msg.MessageID, requestID, senderID, body).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	msg.CreatedAt = createdAt

	return msg, nil
}

// GetByRequestID retrieves a room's history in persistence order with
// sender names joined in
func (r *MessageRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) ([]*domain.ChatMessage, error) {
	query := `
		SELECT m.message_id, m.request_id, m.sender_id, u.name AS sender_name, m.message, m.created_at
		FROM messages m
		INNER JOIN users u ON m.sender_id = u.user_id
		WHERE m.request_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		msg := &domain.ChatMessage{}
		err := rows.Scan(
			&msg.MessageID,
			&msg.RequestID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Body,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
