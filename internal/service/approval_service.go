package service

import (
	"context"
	"sort"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
	"github.com/spec-kit/maintenance-ticket-service/internal/repository"
)

// ApprovalResolver is the single authorization oracle for ticket transitions.
// Implementations must read grants on every call.
type ApprovalResolver interface {
	ApprovalLevel(ctx context.Context, personID, areaID string) (domain.ApprovalLevel, error)
	ListAreaApprovers(ctx context.Context, areaID string, minLevel domain.ApprovalLevel) ([]string, error)
}

// ApprovalService resolves approval levels from stored grants.
type ApprovalService struct {
	grants repository.ApprovalRepository
}

// NewApprovalService constructs the resolver.
func NewApprovalService(grants repository.ApprovalRepository) *ApprovalService {
	return &ApprovalService{grants: grants}
}

// ApprovalLevel returns the highest active level personID holds in areaID,
// or ApprovalNone when there is no active grant.
func (s *ApprovalService) ApprovalLevel(ctx context.Context, personID, areaID string) (domain.ApprovalLevel, error) {
	if personID == "" || areaID == "" {
		return domain.ApprovalNone, nil
	}
	grants, err := s.grants.ListByPersonArea(ctx, personID, areaID)
	if err != nil {
		return domain.ApprovalNone, err
	}
	level := domain.ApprovalNone
	for _, g := range grants {
		if !usable(g) || g.PersonID != personID || g.AreaID != areaID {
			continue
		}
		if g.Level > level {
			level = g.Level
		}
	}
	return level, nil
}

// ListAreaApprovers returns the distinct people holding at least minLevel in areaID.
func (s *ApprovalService) ListAreaApprovers(ctx context.Context, areaID string, minLevel domain.ApprovalLevel) ([]string, error) {
	grants, err := s.grants.ListByArea(ctx, areaID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(grants))
	people := make([]string, 0, len(grants))
	for _, g := range grants {
		if !usable(g) || g.AreaID != areaID || g.Level < minLevel {
			continue
		}
		if _, dup := seen[g.PersonID]; dup {
			continue
		}
		seen[g.PersonID] = struct{}{}
		people = append(people, g.PersonID)
	}
	sort.Strings(people)
	return people, nil
}

func usable(g domain.ApprovalGrant) bool {
	return g.IsActive && g.Level.Valid()
}
