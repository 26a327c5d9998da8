package domain

import "time"

// StatusHistoryEntry is an immutable audit row written with every transition.
// OldStatus is empty for the creation entry.
type StatusHistoryEntry struct {
	ID        string
	TicketID  string
	Kind      TransitionKind
	OldStatus TicketStatus
	NewStatus TicketStatus
	ChangedBy string
	ToUser    *string
	Notes     string
	ChangedAt time.Time
}
