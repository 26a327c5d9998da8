package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// TicketHistoryRepository reads audit entries. Inserts happen only inside
// TicketRepository transactions.
type TicketHistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.StatusHistoryEntry) error {
	const query = `
        INSERT INTO ticket_status_history (ticket_id, transition, old_status, new_status, changed_by, to_user, notes)
        VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7)
        RETURNING id, changed_at`
	return tx.QueryRow(ctx, query,
		entry.TicketID,
		entry.Kind,
		string(entry.OldStatus),
		entry.NewStatus,
		entry.ChangedBy,
		entry.ToUser,
		entry.Notes,
	).Scan(&entry.ID, &entry.ChangedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, transition, COALESCE(old_status, ''), new_status, changed_by, to_user, notes, changed_at
        FROM ticket_status_history WHERE ticket_id=$1 ORDER BY changed_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Kind,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.ChangedBy,
			&entry.ToUser,
			&entry.Notes,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
