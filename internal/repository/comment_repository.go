package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// CommentRepository manages the ticket comment thread.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository constructs repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const insertCommentQuery = `
        INSERT INTO ticket_comments (ticket_id, author_id, comment_type, body)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`

func insertComment(ctx context.Context, tx pgx.Tx, comment *domain.Comment) error {
	return tx.QueryRow(ctx, insertCommentQuery,
		comment.TicketID,
		comment.AuthorID,
		comment.Type,
		comment.Body,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	return r.pool.QueryRow(ctx, insertCommentQuery,
		comment.TicketID,
		comment.AuthorID,
		comment.Type,
		comment.Body,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, comment_type, body, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Type, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
