package domain

// TransitionKind names a guarded state change on a ticket.
type TransitionKind string

const (
	TransitionCreate   TransitionKind = "create"
	TransitionAssign   TransitionKind = "assign"
	TransitionAccept   TransitionKind = "accept"
	TransitionReject   TransitionKind = "reject"
	TransitionComplete TransitionKind = "complete"
	TransitionEscalate TransitionKind = "escalate"
	TransitionClose    TransitionKind = "close"
	TransitionReopen   TransitionKind = "reopen"
	TransitionReassign TransitionKind = "reassign"
)

var nonTerminalStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusRejectedPendingL3,
	TicketStatusCompleted,
	TicketStatusEscalated,
	TicketStatusReopenedInProgress,
}

var transitionSources = map[TransitionKind][]TicketStatus{
	TransitionAssign:   {TicketStatusOpen},
	TransitionAccept:   {TicketStatusOpen, TicketStatusRejectedPendingL3, TicketStatusReopenedInProgress},
	TransitionReject:   nonTerminalStatuses,
	TransitionComplete: {TicketStatusInProgress, TicketStatusReopenedInProgress},
	TransitionEscalate: {TicketStatusInProgress, TicketStatusReopenedInProgress},
	TransitionClose:    {TicketStatusCompleted},
	TransitionReopen:   {TicketStatusCompleted},
	TransitionReassign: nonTerminalStatuses,
}

// SourceStatuses lists the states a transition may start from.
func SourceStatuses(kind TransitionKind) []TicketStatus {
	src := transitionSources[kind]
	out := make([]TicketStatus, len(src))
	copy(out, src)
	return out
}

// CanTransition reports whether kind may fire while the ticket is in status.
func CanTransition(kind TransitionKind, status TicketStatus) bool {
	for _, candidate := range transitionSources[kind] {
		if candidate == status {
			return true
		}
	}
	return false
}
