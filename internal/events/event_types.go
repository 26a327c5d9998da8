package events

import (
	"time"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// TransitionEvent is published after a ticket transition has committed.
// Ticket is the post-transition snapshot.
type TransitionEvent struct {
	ID         string                `json:"id"`
	Kind       domain.TransitionKind `json:"kind"`
	Ticket     domain.Ticket         `json:"ticket"`
	OldStatus  domain.TicketStatus   `json:"old_status,omitempty"`
	NewStatus  domain.TicketStatus   `json:"new_status"`
	Actor      string                `json:"actor"`
	Notes      string                `json:"notes,omitempty"`
	HistoryID  string                `json:"history_id"`
	OccurredAt time.Time             `json:"occurred_at"`
}
