package dto

import (
	"time"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	AreaID           string                `json:"area_id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	SeverityLevel    domain.SeverityLevel  `json:"severity_level"`
	Priority         domain.TicketPriority `json:"priority"`
	MachineID        *string               `json:"machine_id"`
	ProductionUnitID *string               `json:"production_unit_id"`
	AssignedTo       *string               `json:"assigned_to"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
	Notes      string `json:"notes"`
}

// AcceptRequest payload.
type AcceptRequest struct {
	ScheduledComplete *time.Time `json:"scheduled_complete"`
	Notes             string     `json:"notes"`
}

// RejectRequest payload.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// CompleteRequest payload.
type CompleteRequest struct {
	CostAvoidance          *float64 `json:"cost_avoidance"`
	DowntimeAvoidanceHours *float64 `json:"downtime_avoidance_hours"`
	FailureModeID          *string  `json:"failure_mode_id"`
	Notes                  string   `json:"notes"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	EscalatedTo string `json:"escalated_to"`
	Reason      string `json:"reason"`
}

// CloseRequest payload.
type CloseRequest struct {
	SatisfactionRating *int   `json:"satisfaction_rating"`
	Notes              string `json:"notes"`
}

// ReopenRequest payload.
type ReopenRequest struct {
	Reason string `json:"reason"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	NewAssigneeID string `json:"new_assignee_id"`
	Notes         string `json:"notes"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID                     string                `json:"id"`
	TicketNumber           string                `json:"ticket_number"`
	Title                  string                `json:"title"`
	Description            string                `json:"description"`
	SeverityLevel          domain.SeverityLevel  `json:"severity_level"`
	Priority               domain.TicketPriority `json:"priority"`
	AreaID                 string                `json:"area_id"`
	PlantID                string                `json:"plant_id"`
	MachineID              *string               `json:"machine_id"`
	ProductionUnitID       *string               `json:"production_unit_id"`
	ReportedBy             string                `json:"reported_by"`
	AssignedTo             *string               `json:"assigned_to"`
	Status                 domain.TicketStatus   `json:"status"`
	ScheduledComplete      *time.Time            `json:"scheduled_complete"`
	AcceptedAt             *time.Time            `json:"accepted_at"`
	AcceptedBy             *string               `json:"accepted_by"`
	RejectedAt             *time.Time            `json:"rejected_at"`
	RejectedBy             *string               `json:"rejected_by"`
	RejectionReason        *string               `json:"rejection_reason"`
	CompletedAt            *time.Time            `json:"completed_at"`
	CompletedBy            *string               `json:"completed_by"`
	CostAvoidance          *float64              `json:"cost_avoidance"`
	DowntimeAvoidanceHours *float64              `json:"downtime_avoidance_hours"`
	FailureModeID          *string               `json:"failure_mode_id"`
	EscalatedAt            *time.Time            `json:"escalated_at"`
	EscalatedBy            *string               `json:"escalated_by"`
	EscalatedTo            *string               `json:"escalated_to"`
	EscalationReason       *string               `json:"escalation_reason"`
	ClosedAt               *time.Time            `json:"closed_at"`
	ClosedBy               *string               `json:"closed_by"`
	SatisfactionRating     *int                  `json:"satisfaction_rating"`
	ReopenedAt             *time.Time            `json:"reopened_at"`
	ReopenedBy             *string               `json:"reopened_by"`
	CreatedAt              time.Time             `json:"created_at"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

// TransitionResponse is returned by creation and every transition.
type TransitionResponse struct {
	Ticket    TicketResponse      `json:"ticket"`
	Status    domain.TicketStatus `json:"status"`
	HistoryID string              `json:"history_id"`
}

// HistoryResponse is one status history entry.
type HistoryResponse struct {
	ID         string                `json:"id"`
	Transition domain.TransitionKind `json:"transition"`
	OldStatus  domain.TicketStatus   `json:"old_status,omitempty"`
	NewStatus  domain.TicketStatus   `json:"new_status"`
	ChangedBy  string                `json:"changed_by"`
	ToUser     *string               `json:"to_user,omitempty"`
	Notes      string                `json:"notes,omitempty"`
	ChangedAt  time.Time             `json:"changed_at"`
}

// CommentResponse is one thread entry.
type CommentResponse struct {
	ID        string             `json:"id"`
	AuthorID  string             `json:"author_id"`
	Type      domain.CommentType `json:"type"`
	Body      string             `json:"body"`
	CreatedAt time.Time          `json:"created_at"`
}
