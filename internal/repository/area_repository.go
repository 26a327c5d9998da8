package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// AreaRepository handles plant area lookups.
type AreaRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Area, error)
}

type areaRepository struct {
	pool *pgxpool.Pool
}

// NewAreaRepository constructs repository.
func NewAreaRepository(pool *pgxpool.Pool) AreaRepository {
	return &areaRepository{pool: pool}
}

func (r *areaRepository) GetByID(ctx context.Context, id string) (*domain.Area, error) {
	const query = `SELECT id, plant_id, name, is_active, created_at, updated_at FROM areas WHERE id=$1`
	var area domain.Area
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&area.ID,
		&area.PlantID,
		&area.Name,
		&area.IsActive,
		&area.CreatedAt,
		&area.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &area, nil
}
