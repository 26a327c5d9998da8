package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// ImageRepository exposes evidence images written by the upload service.
type ImageRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketImage, error)
}

type imageRepository struct {
	pool *pgxpool.Pool
}

// NewImageRepository builds repository.
func NewImageRepository(pool *pgxpool.Pool) ImageRepository {
	return &imageRepository{pool: pool}
}

func (r *imageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketImage, error) {
	const query = `
        SELECT id, ticket_id, tag, url, uploaded_at
        FROM ticket_images WHERE ticket_id=$1 ORDER BY uploaded_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketImage
	for rows.Next() {
		var img domain.TicketImage
		if err := rows.Scan(&img.ID, &img.TicketID, &img.Tag, &img.URL, &img.UploadedAt); err != nil {
			return nil, err
		}
		result = append(result, img)
	}
	return result, rows.Err()
}
