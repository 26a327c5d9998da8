package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// ErrStatusConflict is returned when the conditional status update matched no row.
var ErrStatusConflict = errors.New("ticket status no longer matches")

// TicketRepository encapsulates ticket persistence. Every write also appends
// the status history entry and the auto comment inside one transaction.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, entry *domain.StatusHistoryEntry, comment *domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ApplyTransition(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.StatusHistoryEntry, comment *domain.Comment) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool, now: time.Now}
}

const ticketColumns = `id, ticket_number, title, description, severity_level, priority, area_id, plant_id,
       machine_id, production_unit_id, reported_by, assigned_to, status, scheduled_complete,
       accepted_at, accepted_by, rejected_at, rejected_by, rejection_reason,
       completed_at, completed_by, cost_avoidance, downtime_avoidance_hours, failure_mode_id,
       escalated_at, escalated_by, escalated_to, escalation_reason,
       closed_at, closed_by, satisfaction_rating, reopened_at, reopened_by,
       created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, entry *domain.StatusHistoryEntry, comment *domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	day := r.now()
	seq, err := nextDailySequence(ctx, tx, day)
	if err != nil {
		return fmt.Errorf("allocate ticket number: %w", err)
	}
	ticket.TicketNumber = domain.FormatTicketNumber(day, seq)

	const query = `
        INSERT INTO tickets (ticket_number, title, description, severity_level, priority, area_id, plant_id,
            machine_id, production_unit_id, reported_by, assigned_to, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.SeverityLevel,
		ticket.Priority,
		ticket.AreaID,
		ticket.PlantID,
		ticket.MachineID,
		ticket.ProductionUnitID,
		ticket.ReportedBy,
		ticket.AssignedTo,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	entry.TicketID = ticket.ID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	if comment != nil {
		comment.TicketID = ticket.ID
		if err := insertComment(ctx, tx, comment); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

// ApplyTransition writes ticket only if its stored status still equals expected.
func (r *ticketRepository) ApplyTransition(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.StatusHistoryEntry, comment *domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE tickets SET status=$1, assigned_to=$2, scheduled_complete=$3,
            accepted_at=$4, accepted_by=$5, rejected_at=$6, rejected_by=$7, rejection_reason=$8,
            completed_at=$9, completed_by=$10, cost_avoidance=$11, downtime_avoidance_hours=$12, failure_mode_id=$13,
            escalated_at=$14, escalated_by=$15, escalated_to=$16, escalation_reason=$17,
            closed_at=$18, closed_by=$19, satisfaction_rating=$20, reopened_at=$21, reopened_by=$22,
            updated_at=NOW()
        WHERE id=$23 AND status=$24
        RETURNING updated_at`
	err = tx.QueryRow(ctx, query,
		ticket.Status,
		ticket.AssignedTo,
		ticket.ScheduledComplete,
		ticket.AcceptedAt,
		ticket.AcceptedBy,
		ticket.RejectedAt,
		ticket.RejectedBy,
		ticket.RejectionReason,
		ticket.CompletedAt,
		ticket.CompletedBy,
		ticket.CostAvoidance,
		ticket.DowntimeAvoidanceHours,
		ticket.FailureModeID,
		ticket.EscalatedAt,
		ticket.EscalatedBy,
		ticket.EscalatedTo,
		ticket.EscalationReason,
		ticket.ClosedAt,
		ticket.ClosedBy,
		ticket.SatisfactionRating,
		ticket.ReopenedAt,
		ticket.ReopenedBy,
		ticket.ID,
		expected,
	).Scan(&ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStatusConflict
	}
	if err != nil {
		return err
	}

	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	if comment != nil {
		if err := insertComment(ctx, tx, comment); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func nextDailySequence(ctx context.Context, tx pgx.Tx, day time.Time) (int, error) {
	const query = `
        INSERT INTO ticket_daily_sequences (day, last_value) VALUES ($1, 1)
        ON CONFLICT (day) DO UPDATE SET last_value = ticket_daily_sequences.last_value + 1
        RETURNING last_value`
	var seq int
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	err := tx.QueryRow(ctx, query, date).Scan(&seq)
	return seq, err
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		status string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.SeverityLevel,
		&ticket.Priority,
		&ticket.AreaID,
		&ticket.PlantID,
		&ticket.MachineID,
		&ticket.ProductionUnitID,
		&ticket.ReportedBy,
		&ticket.AssignedTo,
		&status,
		&ticket.ScheduledComplete,
		&ticket.AcceptedAt,
		&ticket.AcceptedBy,
		&ticket.RejectedAt,
		&ticket.RejectedBy,
		&ticket.RejectionReason,
		&ticket.CompletedAt,
		&ticket.CompletedBy,
		&ticket.CostAvoidance,
		&ticket.DowntimeAvoidanceHours,
		&ticket.FailureModeID,
		&ticket.EscalatedAt,
		&ticket.EscalatedBy,
		&ticket.EscalatedTo,
		&ticket.EscalationReason,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
		&ticket.SatisfactionRating,
		&ticket.ReopenedAt,
		&ticket.ReopenedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseTicketStatus(status)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticket.ID, err)
	}
	ticket.Status = parsed
	return &ticket, nil
}
