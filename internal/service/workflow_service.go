package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
	"github.com/spec-kit/maintenance-ticket-service/internal/events"
	"github.com/spec-kit/maintenance-ticket-service/internal/observability"
	"github.com/spec-kit/maintenance-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/maintenance-ticket-service/pkg/util"
)

// WorkflowService is the ticket state machine. It holds no locks: concurrent
// transitions on one ticket are serialized by the conditional status update.
type WorkflowService struct {
	tickets   repository.TicketRepository
	history   repository.TicketHistoryRepository
	comments  repository.CommentRepository
	areas     repository.AreaRepository
	people    repository.PersonRepository
	approvals ApprovalResolver
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time

	publishTimeout time.Duration
}

// DefaultPublishTimeout bounds the hand-off of a transition event to the dispatcher.
const DefaultPublishTimeout = 2 * time.Second

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	CommentRepo repository.CommentRepository
	AreaRepo    repository.AreaRepository
	PersonRepo  repository.PersonRepository
	Approvals   ApprovalResolver
	Publisher   events.Publisher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time

	// PublishTimeout defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	publishTimeout := deps.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &WorkflowService{
		tickets:   deps.TicketRepo,
		history:   deps.HistoryRepo,
		comments:  deps.CommentRepo,
		areas:     deps.AreaRepo,
		people:    deps.PersonRepo,
		approvals: deps.Approvals,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       clock,

		publishTimeout: publishTimeout,
	}
}

// TransitionResult is returned by every state-changing operation.
type TransitionResult struct {
	Ticket    *domain.Ticket
	Status    domain.TicketStatus
	HistoryID string
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	AreaID           string
	Title            string
	Description      string
	SeverityLevel    domain.SeverityLevel
	Priority         domain.TicketPriority
	MachineID        *string
	ProductionUnitID *string
	AssignedTo       *string
}

// AssignInput hands an OPEN ticket to a person.
type AssignInput struct {
	AssigneeID string
	Notes      string
}

// AcceptInput is the acceptor's commitment.
type AcceptInput struct {
	ScheduledComplete *time.Time
	Notes             string
}

// RejectInput carries the mandatory reason.
type RejectInput struct {
	Reason string
}

// CompleteInput records the repair outcome.
type CompleteInput struct {
	CostAvoidance          *float64
	DowntimeAvoidanceHours *float64
	FailureModeID          *string
	Notes                  string
}

// EscalateInput names who takes over and why.
type EscalateInput struct {
	EscalatedTo string
	Reason      string
}

// CloseInput is the reporter's verdict.
type CloseInput struct {
	SatisfactionRating *int
	Notes              string
}

// ReopenInput explains why the completed work is not accepted.
type ReopenInput struct {
	Reason string
}

// ReassignInput moves the ticket back to OPEN under a new owner.
type ReassignInput struct {
	NewAssigneeID string
	Notes         string
}

// CreateTicket records a new finding reported by reporterID.
func (s *WorkflowService) CreateTicket(ctx context.Context, reporterID string, input CreateTicketInput) (*TransitionResult, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.AreaID) == "" {
		return nil, apperrors.NewInvalidArgument("area_id and title required", nil)
	}
	severity := input.SeverityLevel
	if severity == "" {
		severity = domain.SeverityMedium
	}
	if !severity.Valid() {
		return nil, apperrors.NewInvalidArgument("invalid severity_level", map[string]any{"severity_level": severity})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !priority.Valid() {
		return nil, apperrors.NewInvalidArgument("invalid priority", map[string]any{"priority": priority})
	}

	if _, err := s.lookupPerson(ctx, reporterID); err != nil {
		return nil, err
	}
	area, err := s.areas.GetByID(ctx, input.AreaID)
	if err != nil {
		return nil, notFoundOr(err, "area", map[string]any{"area_id": input.AreaID})
	}
	if !area.IsActive {
		return nil, apperrors.NewInvalidArgument("area inactive", map[string]any{"area_id": area.ID})
	}

	ticket := &domain.Ticket{
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		SeverityLevel:    severity,
		Priority:         priority,
		AreaID:           area.ID,
		PlantID:          area.PlantID,
		MachineID:        nonEmpty(input.MachineID),
		ProductionUnitID: nonEmpty(input.ProductionUnitID),
		ReportedBy:       reporterID,
		Status:           domain.TicketStatusOpen,
	}

	if assignee := nonEmpty(input.AssignedTo); assignee != nil {
		if err := s.validatePreAssignee(ctx, *assignee, area.ID); err != nil {
			return nil, err
		}
		ticket.AssignedTo = assignee
		ticket.Status = domain.TicketStatusAssigned
	}

	entry := &domain.StatusHistoryEntry{
		Kind:      domain.TransitionCreate,
		NewStatus: ticket.Status,
		ChangedBy: reporterID,
		ToUser:    ticket.AssignedTo,
		Notes:     "ticket created",
	}
	comment := statusComment(reporterID, domain.TransitionCreate, "", ticket.Status, "")
	if err := s.tickets.Create(ctx, ticket, entry, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("area_id", ticket.AreaID),
		zap.String("status", string(ticket.Status)))
	s.publishEvent(ctx, events.TransitionEvent{
		Kind:      domain.TransitionCreate,
		Ticket:    *ticket,
		NewStatus: ticket.Status,
		Actor:     reporterID,
		HistoryID: entry.ID,
	})
	return &TransitionResult{Ticket: ticket, Status: ticket.Status, HistoryID: entry.ID}, nil
}

// Assign hands an OPEN ticket to assigneeID.
func (s *WorkflowService) Assign(ctx context.Context, actorID, ticketID string, input AssignInput) (*TransitionResult, error) {
	assigneeID := strings.TrimSpace(input.AssigneeID)
	if assigneeID == "" {
		return nil, apperrors.NewInvalidArgument("assignee_id required", nil)
	}
	if err := s.requireActivePerson(ctx, assigneeID); err != nil {
		return nil, err
	}
	return s.run(ctx, operation{
		kind:     domain.TransitionAssign,
		ticketID: ticketID,
		actorID:  actorID,
		minLevel: domain.ApprovalReporter,
		mutate: func(next *domain.Ticket, _ domain.ApprovalLevel, _ time.Time) outcome {
			next.AssignedTo = &assigneeID
			return outcome{status: domain.TicketStatusAssigned, toUser: &assigneeID, notes: input.Notes}
		},
	})
}

// Accept takes ownership of a ticket and commits to a completion date.
func (s *WorkflowService) Accept(ctx context.Context, actorID, ticketID string, input AcceptInput) (*TransitionResult, error) {
	if input.ScheduledComplete == nil || input.ScheduledComplete.IsZero() {
		return nil, apperrors.NewInvalidArgument("scheduled_complete required", nil)
	}
	scheduled := *input.ScheduledComplete
	return s.run(ctx, operation{
		kind:     domain.TransitionAccept,
		ticketID: ticketID,
		actorID:  actorID,
		minLevel: domain.ApprovalEngineer,
		mutate: func(next *domain.Ticket, _ domain.ApprovalLevel, now time.Time) outcome {
			next.AssignedTo = &actorID
			next.ScheduledComplete = &scheduled
			next.AcceptedAt = &now
			next.AcceptedBy = &actorID
			return outcome{status: domain.TicketStatusInProgress, toUser: &actorID, notes: input.Notes}
		},
	})
}

// Reject refuses a ticket. Managers reject finally; engineers send it to manager review.
func (s *WorkflowService) Reject(ctx context.Context, actorID, ticketID string, input RejectInput) (*TransitionResult, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperrors.NewInvalidArgument("reason required", nil)
	}
	return s.run(ctx, operation{
		kind:     domain.TransitionReject,
		ticketID: ticketID,
		actorID:  actorID,
		minLevel: domain.ApprovalEngineer,
		mutate: func(next *domain.Ticket, level domain.ApprovalLevel, now time.Time) outcome {
			next.RejectedAt = &now
			next.RejectedBy = &actorID
			next.RejectionReason = &reason
			status := domain.TicketStatusRejectedPendingL3
			if level >= domain.ApprovalManager {
				status = domain.TicketStatusRejectedFinal
			}
			return outcome{status: status, notes: reason}
		},
	})
}

// Complete records the outcome of the repair. Only the current assignee may complete.
func (s *WorkflowService) Complete(ctx context.Context, actorID, ticketID string, input CompleteInput) (*TransitionResult, error) {
	if input.CostAvoidance != nil && *input.CostAvoidance < 0 {
		return nil, apperrors.NewInvalidArgument("cost_avoidance must not be negative", nil)
	}
	if input.DowntimeAvoidanceHours != nil && *input.DowntimeAvoidanceHours < 0 {
		return nil, apperrors.NewInvalidArgument("downtime_avoidance_hours must not be negative", nil)
	}
	return s.run(ctx, operation{
		kind:     domain.TransitionComplete,
		ticketID: ticketID,
		actorID:  actorID,
		// ownership is checked before the state so a non-assignee always gets FORBIDDEN
		precheck: requireAssignee(actorID),
		mutate: func(next *domain.Ticket, _ domain.ApprovalLevel, now time.Time) outcome {
			next.CompletedAt = &now
			next.CompletedBy = &actorID
			next.CostAvoidance = input.CostAvoidance
			next.DowntimeAvoidanceHours = input.DowntimeAvoidanceHours
			next.FailureModeID = nonEmpty(input.FailureModeID)
			return outcome{status: domain.TicketStatusCompleted, notes: input.Notes}
		},
	})
}

// Escalate hands the problem to someone with more authority or expertise.
func (s *WorkflowService) Escalate(ctx context.Context, actorID, ticketID string, input EscalateInput) (*TransitionResult, error) {
	target := strings.TrimSpace(input.EscalatedTo)
	reason := strings.TrimSpace(input.Reason)
	if target == "" || reason == "" {
		return nil, apperrors.NewInvalidArgument("escalated_to and reason required", nil)
	}
	if err := s.requireActivePerson(ctx, target); err != nil {
		return nil, err
	}
	return s.run(ctx, operation{
		kind:     domain.TransitionEscalate,
		ticketID: ticketID,
		actorID:  actorID,
		check:    requireAssignee(actorID),
		mutate: func(next *domain.Ticket, _ domain.ApprovalLevel, now time.Time) outcome {
			next.EscalatedAt = &now
			next.EscalatedBy = &actorID
			next.EscalatedTo = &target
			next.EscalationReason = &reason
			return outcome{status: domain.TicketStatusEscalated, toUser: &target, notes: reason}
		},
	})
}

// Close confirms the completed work. Only the reporter may close.
func (s *WorkflowService) Close(ctx context.Context, actorID, ticketID string, input CloseInput) (*TransitionResult, error) {
	if input.SatisfactionRating == nil || *input.SatisfactionRating < 1 || *input.SatisfactionRating > 5 {
		return nil, apperrors.NewInvalidArgument("satisfaction_rating must be between 1 and 5", nil)
	}
	rating := *input.SatisfactionRating
	return s.run(ctx, operation{
		kind:     domain.TransitionClose,
		ticketID: ticketID,
		actorID:  actorID,
		check:    requireReporter(actorID),
		mutate: func(next *domain.Ticket, _ domain.ApprovalLevel, now time.Time) outcome {
			next.ClosedAt = &now
			next.ClosedBy = &actorID
			next.SatisfactionRating = &rating
			return outcome{status: domain.TicketStatusClosed, notes: input.Notes}
		},
	})
}

// Reopen sends completed work back to the assignee. Only the reporter may reopen.
func (s *WorkflowService) Reopen(ctx context.Context, actorID, ticketID string, input ReopenInput) (*TransitionResult, error) {
	return s.run(ctx, operation{
		kind:     domain.TransitionReopen,
		ticketID: ticketID,
		actorID:  actorID,
		check:    requireReporter(actorID),
		mutate: func(next *domain.Ticket, _ domain.ApprovalLevel, now time.Time) outcome {
			next.ReopenedAt = &now
			next.ReopenedBy = &actorID
			return outcome{status: domain.TicketStatusReopenedInProgress, toUser: next.AssignedTo, notes: strings.TrimSpace(input.Reason)}
		},
	})
}

// Reassign moves a live ticket back to OPEN under a new owner. Managers only.
func (s *WorkflowService) Reassign(ctx context.Context, actorID, ticketID string, input ReassignInput) (*TransitionResult, error) {
	assigneeID := strings.TrimSpace(input.NewAssigneeID)
	if assigneeID == "" {
		return nil, apperrors.NewInvalidArgument("new_assignee_id required", nil)
	}
	if err := s.requireActivePerson(ctx, assigneeID); err != nil {
		return nil, err
	}
	return s.run(ctx, operation{
		kind:     domain.TransitionReassign,
		ticketID: ticketID,
		actorID:  actorID,
		minLevel: domain.ApprovalManager,
		mutate: func(next *domain.Ticket, _ domain.ApprovalLevel, _ time.Time) outcome {
			next.AssignedTo = &assigneeID
			return outcome{status: domain.TicketStatusOpen, toUser: &assigneeID, notes: input.Notes}
		},
	})
}

// GetTicket returns the current ticket state.
func (s *WorkflowService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.loadTicket(ctx, ticketID)
}

// ListHistory returns the status history of a ticket in commit order.
func (s *WorkflowService) ListHistory(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ListComments returns the comment thread of a ticket.
func (s *WorkflowService) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	if _, err := s.loadTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// AddComment appends a user-authored note.
func (s *WorkflowService) AddComment(ctx context.Context, actorID, ticketID, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewInvalidArgument("body required", nil)
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: actorID,
		Type:     domain.CommentTypeUser,
		Body:     body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

type outcome struct {
	status domain.TicketStatus
	toUser *string
	notes  string
}

type operation struct {
	kind     domain.TransitionKind
	ticketID string
	actorID  string
	// minLevel > 0 requires that approval level in the ticket's area.
	minLevel domain.ApprovalLevel
	precheck func(current *domain.Ticket) error
	check    func(current *domain.Ticket) error
	mutate   func(next *domain.Ticket, level domain.ApprovalLevel, now time.Time) outcome
}

func (s *WorkflowService) run(ctx context.Context, op operation) (*TransitionResult, error) {
	current, err := s.loadTicket(ctx, op.ticketID)
	if err != nil {
		return nil, err
	}
	if op.precheck != nil {
		if err := op.precheck(current); err != nil {
			return nil, err
		}
	}
	if !domain.CanTransition(op.kind, current.Status) {
		return nil, apperrors.NewConflict("transition not allowed from current status", map[string]any{
			"transition": op.kind,
			"status":     current.Status,
		})
	}
	if op.check != nil {
		if err := op.check(current); err != nil {
			return nil, err
		}
	}

	level := domain.ApprovalNone
	if op.minLevel > domain.ApprovalNone {
		level, err = s.approvals.ApprovalLevel(ctx, op.actorID, current.AreaID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if level < op.minLevel {
			return nil, apperrors.NewForbidden(fmt.Sprintf("%s requires approval level %d in area", op.kind, op.minLevel))
		}
	}

	next := current.Clone()
	result := op.mutate(next, level, s.now())
	next.Status = result.status

	entry := &domain.StatusHistoryEntry{
		TicketID:  current.ID,
		Kind:      op.kind,
		OldStatus: current.Status,
		NewStatus: result.status,
		ChangedBy: op.actorID,
		ToUser:    result.toUser,
		Notes:     result.notes,
	}
	comment := statusComment(op.actorID, op.kind, current.Status, result.status, result.notes)
	comment.TicketID = current.ID

	if err := s.tickets.ApplyTransition(ctx, next, current.Status, entry, comment); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.NewConflict("ticket changed concurrently", map[string]any{
				"transition": op.kind,
				"expected":   current.Status,
			})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket transition",
		zap.String("ticket_id", next.ID),
		zap.String("transition", string(op.kind)),
		zap.String("old_status", string(current.Status)),
		zap.String("new_status", string(next.Status)),
		zap.String("actor", op.actorID))
	s.publishEvent(ctx, events.TransitionEvent{
		Kind:      op.kind,
		Ticket:    *next,
		OldStatus: current.Status,
		NewStatus: next.Status,
		Actor:     op.actorID,
		Notes:     result.notes,
		HistoryID: entry.ID,
	})
	return &TransitionResult{Ticket: next, Status: next.Status, HistoryID: entry.ID}, nil
}

func requireAssignee(actorID string) func(*domain.Ticket) error {
	return func(t *domain.Ticket) error {
		if !t.IsAssignedTo(actorID) {
			return apperrors.NewForbidden("only the current assignee may do this")
		}
		return nil
	}
}

func requireReporter(actorID string) func(*domain.Ticket) error {
	return func(t *domain.Ticket) error {
		if t.ReportedBy != actorID {
			return apperrors.NewForbidden("only the reporter may do this")
		}
		return nil
	}
}

func (s *WorkflowService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperrors.NewInvalidArgument("ticket id required", nil)
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (s *WorkflowService) lookupPerson(ctx context.Context, personID string) (*domain.Person, error) {
	person, err := s.people.GetByID(ctx, personID)
	if err != nil {
		return nil, notFoundOr(err, "person", map[string]any{"person_id": personID})
	}
	return person, nil
}

func (s *WorkflowService) requireActivePerson(ctx context.Context, personID string) error {
	person, err := s.lookupPerson(ctx, personID)
	if err != nil {
		return err
	}
	if !person.IsActive {
		return apperrors.NewInvalidArgument("person inactive", map[string]any{"person_id": personID})
	}
	return nil
}

func (s *WorkflowService) validatePreAssignee(ctx context.Context, personID, areaID string) error {
	invalid := apperrors.NewInvalidArgument("assigned_to is not a valid assignee for this area", map[string]any{"assigned_to": personID})
	person, err := s.people.GetByID(ctx, personID)
	if errors.Is(err, pgx.ErrNoRows) {
		return invalid
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	if !person.IsActive {
		return invalid
	}
	level, err := s.approvals.ApprovalLevel(ctx, personID, areaID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if level < domain.ApprovalEngineer {
		return invalid
	}
	return nil
}

// publishEvent hands the event off without letting failure reach the caller.
func (s *WorkflowService) publishEvent(ctx context.Context, event events.TransitionEvent) {
	if s.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, event); err != nil {
		s.metrics.RecordPublishError()
		s.logger.Error("publish transition event",
			zap.String("ticket_id", event.Ticket.ID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}

func statusComment(actorID string, kind domain.TransitionKind, from, to domain.TicketStatus, notes string) *domain.Comment {
	var body string
	if from == "" {
		body = fmt.Sprintf("Ticket created with status %s", to)
	} else {
		body = fmt.Sprintf("%s: status changed from %s to %s", kind, from, to)
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		body += "\n" + notes
	}
	return &domain.Comment{AuthorID: actorID, Type: domain.CommentTypeStatusChange, Body: body}
}

func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

func nonEmpty(val *string) *string {
	if val == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
