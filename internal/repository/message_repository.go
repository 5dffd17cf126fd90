package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/hitl-service/internal/domain"
)

// MessageRepository manages the append-only message ledger.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListByCase returns all messages for a case, oldest first.
	ListByCase(ctx context.Context, caseID string) ([]domain.Message, error)
	// ListRecent returns up to limit messages for a case, newest first.
	ListRecent(ctx context.Context, caseID string, limit int) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (case_id, content, sender_type, sender_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.CaseID,
		msg.Content,
		msg.SenderType,
		msg.SenderID,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Message, error) {
	const query = `
        SELECT id, case_id, content, sender_type, sender_id, created_at
        FROM messages WHERE case_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) ListRecent(ctx context.Context, caseID string, limit int) ([]domain.Message, error) {
	const query = `
        SELECT id, case_id, content, sender_type, sender_id, created_at
        FROM messages WHERE case_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, caseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.CaseID,
			&msg.Content,
			&msg.SenderType,
			&msg.SenderID,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
