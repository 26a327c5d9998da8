package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/maintenance-ticket-service/internal/api/dto"
	"github.com/spec-kit/maintenance-ticket-service/internal/auth"
	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
	"github.com/spec-kit/maintenance-ticket-service/internal/service"
	apperrors "github.com/spec-kit/maintenance-ticket-service/pkg/util"
)

type ticketWorkflow interface {
	CreateTicket(ctx context.Context, reporterID string, input service.CreateTicketInput) (*service.TransitionResult, error)
	Assign(ctx context.Context, actorID, ticketID string, input service.AssignInput) (*service.TransitionResult, error)
	Accept(ctx context.Context, actorID, ticketID string, input service.AcceptInput) (*service.TransitionResult, error)
	Reject(ctx context.Context, actorID, ticketID string, input service.RejectInput) (*service.TransitionResult, error)
	Complete(ctx context.Context, actorID, ticketID string, input service.CompleteInput) (*service.TransitionResult, error)
	Escalate(ctx context.Context, actorID, ticketID string, input service.EscalateInput) (*service.TransitionResult, error)
	Close(ctx context.Context, actorID, ticketID string, input service.CloseInput) (*service.TransitionResult, error)
	Reopen(ctx context.Context, actorID, ticketID string, input service.ReopenInput) (*service.TransitionResult, error)
	Reassign(ctx context.Context, actorID, ticketID string, input service.ReassignInput) (*service.TransitionResult, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListHistory(ctx context.Context, ticketID string) ([]domain.StatusHistoryEntry, error)
	ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error)
	AddComment(ctx context.Context, actorID, ticketID, body string) (*domain.Comment, error)
}

// TicketsHandler exposes the ticket workflow over HTTP.
type TicketsHandler struct {
	workflow ticketWorkflow
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(workflow ticketWorkflow) *TicketsHandler {
	return &TicketsHandler{workflow: workflow}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actorID, err := auth.PersonID(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	result, err := h.workflow.CreateTicket(c.UserContext(), actorID, service.CreateTicketInput{
		AreaID:           req.AreaID,
		Title:            req.Title,
		Description:      req.Description,
		SeverityLevel:    req.SeverityLevel,
		Priority:         req.Priority,
		MachineID:        req.MachineID,
		ProductionUnitID: req.ProductionUnitID,
		AssignedTo:       req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": transitionResponse(result)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.workflow.GetTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	entries, err := h.workflow.ListHistory(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.HistoryResponse{
			ID:         entry.ID,
			Transition: entry.Kind,
			OldStatus:  entry.OldStatus,
			NewStatus:  entry.NewStatus,
			ChangedBy:  entry.ChangedBy,
			ToUser:     entry.ToUser,
			Notes:      entry.Notes,
			ChangedAt:  entry.ChangedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	comments, err := h.workflow.ListComments(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actorID, err := auth.PersonID(c)
	if err != nil {
		return err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	comment, err := h.workflow.AddComment(c.UserContext(), actorID, ticketID, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Assign(ctx, actorID, ticketID, service.AssignInput{AssigneeID: req.AssigneeID, Notes: req.Notes})
	})
}

// Accept POST /tickets/:id/accept.
func (h *TicketsHandler) Accept(c *fiber.Ctx) error {
	var req dto.AcceptRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Accept(ctx, actorID, ticketID, service.AcceptInput{ScheduledComplete: req.ScheduledComplete, Notes: req.Notes})
	})
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	var req dto.RejectRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Reject(ctx, actorID, ticketID, service.RejectInput{Reason: req.Reason})
	})
}

// Complete POST /tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	var req dto.CompleteRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Complete(ctx, actorID, ticketID, service.CompleteInput{
			CostAvoidance:          req.CostAvoidance,
			DowntimeAvoidanceHours: req.DowntimeAvoidanceHours,
			FailureModeID:          req.FailureModeID,
			Notes:                  req.Notes,
		})
	})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	var req dto.EscalateRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Escalate(ctx, actorID, ticketID, service.EscalateInput{EscalatedTo: req.EscalatedTo, Reason: req.Reason})
	})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Close(ctx, actorID, ticketID, service.CloseInput{SatisfactionRating: req.SatisfactionRating, Notes: req.Notes})
	})
}

// Reopen POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	var req dto.ReopenRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Reopen(ctx, actorID, ticketID, service.ReopenInput{Reason: req.Reason})
	})
}

// Reassign POST /tickets/:id/reassign.
func (h *TicketsHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	return h.transition(c, &req, func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error) {
		return h.workflow.Reassign(ctx, actorID, ticketID, service.ReassignInput{NewAssigneeID: req.NewAssigneeID, Notes: req.Notes})
	})
}

// transition parses an optional JSON body into req and runs apply for the caller.
func (h *TicketsHandler) transition(c *fiber.Ctx, req any, apply func(ctx context.Context, actorID, ticketID string) (*service.TransitionResult, error)) error {
	actorID, err := auth.PersonID(c)
	if err != nil {
		return err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return apperrors.NewInvalidArgument("invalid payload", nil)
		}
	}
	result, err := apply(c.UserContext(), actorID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(result)})
}

// ticketIDParam reads :id; ticket ids are UUIDs, so anything else names no ticket.
func ticketIDParam(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return id, nil
}

func transitionResponse(result *service.TransitionResult) dto.TransitionResponse {
	return dto.TransitionResponse{
		Ticket:    ticketResponse(result.Ticket),
		Status:    result.Status,
		HistoryID: result.HistoryID,
	}
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                     t.ID,
		TicketNumber:           t.TicketNumber,
		Title:                  t.Title,
		Description:            t.Description,
		SeverityLevel:          t.SeverityLevel,
		Priority:               t.Priority,
		AreaID:                 t.AreaID,
		PlantID:                t.PlantID,
		MachineID:              t.MachineID,
		ProductionUnitID:       t.ProductionUnitID,
		ReportedBy:             t.ReportedBy,
		AssignedTo:             t.AssignedTo,
		Status:                 t.Status,
		ScheduledComplete:      t.ScheduledComplete,
		AcceptedAt:             t.AcceptedAt,
		AcceptedBy:             t.AcceptedBy,
		RejectedAt:             t.RejectedAt,
		RejectedBy:             t.RejectedBy,
		RejectionReason:        t.RejectionReason,
		CompletedAt:            t.CompletedAt,
		CompletedBy:            t.CompletedBy,
		CostAvoidance:          t.CostAvoidance,
		DowntimeAvoidanceHours: t.DowntimeAvoidanceHours,
		FailureModeID:          t.FailureModeID,
		EscalatedAt:            t.EscalatedAt,
		EscalatedBy:            t.EscalatedBy,
		EscalatedTo:            t.EscalatedTo,
		EscalationReason:       t.EscalationReason,
		ClosedAt:               t.ClosedAt,
		ClosedBy:               t.ClosedBy,
		SatisfactionRating:     t.SatisfactionRating,
		ReopenedAt:             t.ReopenedAt,
		ReopenedBy:             t.ReopenedBy,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		AuthorID:  comment.AuthorID,
		Type:      comment.Type,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}
