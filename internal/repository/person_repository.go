package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// PersonRepository looks up people and their contact channels.
type PersonRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Person, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Person, error)
}

type personRepository struct {
	pool *pgxpool.Pool
}

// NewPersonRepository constructs repository.
func NewPersonRepository(pool *pgxpool.Pool) PersonRepository {
	return &personRepository{pool: pool}
}

const personColumns = `id, name, email, COALESCE(chat_user_id, ''), is_active, created_at, updated_at`

func (r *personRepository) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE id=$1`
	var p domain.Person
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.ChatUserID,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *personRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + personColumns + ` FROM people WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Person
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Email,
			&p.ChatUserID,
			&p.IsActive,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
