package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "OPEN"
	TicketStatusAssigned           TicketStatus = "ASSIGNED"
	TicketStatusInProgress         TicketStatus = "IN_PROGRESS"
	TicketStatusRejectedPendingL3  TicketStatus = "REJECTED_PENDING_L3_REVIEW"
	TicketStatusRejectedFinal      TicketStatus = "REJECTED_FINAL"
	TicketStatusCompleted          TicketStatus = "COMPLETED"
	TicketStatusEscalated          TicketStatus = "ESCALATED"
	TicketStatusClosed             TicketStatus = "CLOSED"
	TicketStatusReopenedInProgress TicketStatus = "REOPENED_IN_PROGRESS"
)

var ticketStatuses = map[TicketStatus]struct{}{
	TicketStatusOpen:               {},
	TicketStatusAssigned:           {},
	TicketStatusInProgress:         {},
	TicketStatusRejectedPendingL3:  {},
	TicketStatusRejectedFinal:      {},
	TicketStatusCompleted:          {},
	TicketStatusEscalated:          {},
	TicketStatusClosed:             {},
	TicketStatusReopenedInProgress: {},
}

// ParseTicketStatus rejects anything outside the closed status set.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(raw)
	if _, ok := ticketStatuses[status]; !ok {
		return "", fmt.Errorf("unknown ticket status %q", raw)
	}
	return status, nil
}

// Valid reports whether s is a defined status.
func (s TicketStatus) Valid() bool {
	_, ok := ticketStatuses[s]
	return ok
}

// Terminal reports whether no further transition may leave s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusRejectedFinal || s == TicketStatusClosed
}

// SeverityLevel classifies how abnormal a finding is.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "LOW"
	SeverityMedium   SeverityLevel = "MEDIUM"
	SeverityHigh     SeverityLevel = "HIGH"
	SeverityCritical SeverityLevel = "CRITICAL"
)

// Valid reports whether the severity is known.
func (s SeverityLevel) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// TicketPriority enumerates response urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether the priority is known.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for an abnormal finding reported on the plant floor.
// Each *At/*By pair is set only once the matching event has happened.
type Ticket struct {
	ID               string
	TicketNumber     string
	Title            string
	Description      string
	SeverityLevel    SeverityLevel
	Priority         TicketPriority
	AreaID           string
	PlantID          string
	MachineID        *string
	ProductionUnitID *string
	ReportedBy       string
	AssignedTo       *string
	Status           TicketStatus

	ScheduledComplete *time.Time

	AcceptedAt *time.Time
	AcceptedBy *string

	RejectedAt      *time.Time
	RejectedBy      *string
	RejectionReason *string

	CompletedAt            *time.Time
	CompletedBy            *string
	CostAvoidance          *float64
	DowntimeAvoidanceHours *float64
	FailureModeID          *string

	EscalatedAt      *time.Time
	EscalatedBy      *string
	EscalatedTo      *string
	EscalationReason *string

	ClosedAt           *time.Time
	ClosedBy           *string
	SatisfactionRating *int

	ReopenedAt *time.Time
	ReopenedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that can be mutated without touching t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// IsAssignedTo reports whether personID currently owns the ticket.
func (t *Ticket) IsAssignedTo(personID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == personID
}

// FormatTicketNumber renders TKT-YYYYMMDD-NNN for the seq-th ticket of day.
func FormatTicketNumber(day time.Time, seq int) string {
	return fmt.Sprintf("TKT-%s-%03d", day.Format("20060102"), seq)
}
