package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// ApprovalRepository reads approval grants. Grants are written by admin tooling only.
type ApprovalRepository interface {
	ListByPersonArea(ctx context.Context, personID, areaID string) ([]domain.ApprovalGrant, error)
	ListByArea(ctx context.Context, areaID string) ([]domain.ApprovalGrant, error)
}

type approvalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository instantiates the repository.
func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &approvalRepository{pool: pool}
}

const grantColumns = `id, person_id, area_id, approval_level, is_active, created_at, updated_at`

func (r *approvalRepository) ListByPersonArea(ctx context.Context, personID, areaID string) ([]domain.ApprovalGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM approval_grants WHERE person_id=$1 AND area_id=$2`
	return r.list(ctx, query, personID, areaID)
}

func (r *approvalRepository) ListByArea(ctx context.Context, areaID string) ([]domain.ApprovalGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM approval_grants WHERE area_id=$1 ORDER BY person_id`
	return r.list(ctx, query, areaID)
}

func (r *approvalRepository) list(ctx context.Context, query string, args ...any) ([]domain.ApprovalGrant, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalGrant
	for rows.Next() {
		var grant domain.ApprovalGrant
		if err := rows.Scan(
			&grant.ID,
			&grant.PersonID,
			&grant.AreaID,
			&grant.Level,
			&grant.IsActive,
			&grant.CreatedAt,
			&grant.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, grant)
	}
	return result, rows.Err()
}
