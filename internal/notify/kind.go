package notify

import "github.com/spec-kit/maintenance-ticket-service/internal/domain"

// Kind selects the message template for a transition.
type Kind string

const (
	KindCreated         Kind = "CREATED"
	KindAccepted        Kind = "ACCEPTED"
	KindCompleted       Kind = "COMPLETED"
	KindRejectToManager Kind = "REJECT_TO_MANAGER"
	KindRejectFinal     Kind = "REJECT_FINAL"
	KindEscalated       Kind = "ESCALATED"
	KindClosed          Kind = "CLOSED"
	KindReopened        Kind = "REOPENED"
	KindReassigned      Kind = "REASSIGNED"
)

// Style is the per-kind presentation shared by every channel.
type Style struct {
	Subject string
	Color   string
	Icon    string
	// HeroTag is the evidence tag shown as hero image; empty means no image.
	HeroTag domain.ImageTag
}

var styles = map[Kind]Style{
	KindCreated:         {Subject: "New abnormal finding reported", Color: "#1E88E5", Icon: "🆕", HeroTag: domain.ImageTagBefore},
	KindAccepted:        {Subject: "Ticket accepted", Color: "#43A047", Icon: "✅"},
	KindCompleted:       {Subject: "Work completed", Color: "#2E7D32", Icon: "🛠️", HeroTag: domain.ImageTagAfter},
	KindRejectToManager: {Subject: "Rejection awaiting manager review", Color: "#FB8C00", Icon: "⚠️"},
	KindRejectFinal:     {Subject: "Ticket rejected", Color: "#E53935", Icon: "⛔"},
	KindEscalated:       {Subject: "Ticket escalated", Color: "#8E24AA", Icon: "⏫", HeroTag: domain.ImageTagBefore},
	KindClosed:          {Subject: "Ticket closed", Color: "#546E7A", Icon: "🔒"},
	KindReopened:        {Subject: "Ticket reopened", Color: "#F4511E", Icon: "🔁"},
	KindReassigned:      {Subject: "Ticket assigned to you", Color: "#3949AB", Icon: "👤"},
}

// StyleFor returns the presentation for kind.
func StyleFor(kind Kind) Style {
	return styles[kind]
}

// KindFor maps a committed transition to its message kind.
func KindFor(transition domain.TransitionKind, newStatus domain.TicketStatus) (Kind, bool) {
	switch transition {
	case domain.TransitionCreate:
		return KindCreated, true
	case domain.TransitionAccept:
		return KindAccepted, true
	case domain.TransitionReject:
		if newStatus == domain.TicketStatusRejectedFinal {
			return KindRejectFinal, true
		}
		return KindRejectToManager, true
	case domain.TransitionComplete:
		return KindCompleted, true
	case domain.TransitionEscalate:
		return KindEscalated, true
	case domain.TransitionClose:
		return KindClosed, true
	case domain.TransitionReopen:
		return KindReopened, true
	case domain.TransitionAssign, domain.TransitionReassign:
		return KindReassigned, true
	}
	return "", false
}

// SelectHeroImage returns the earliest uploaded image carrying tag.
// images must be in upload order.
func SelectHeroImage(images []domain.TicketImage, tag domain.ImageTag) *domain.TicketImage {
	if tag == "" {
		return nil
	}
	for i := range images {
		if images[i].Tag == tag && images[i].URL != "" {
			return &images[i]
		}
	}
	return nil
}
