package domain

import "time"

// ImageTag marks when evidence was captured relative to the repair.
type ImageTag string

const (
	ImageTagBefore ImageTag = "before"
	ImageTagAfter  ImageTag = "after"
)

// TicketImage is uploaded evidence with a URL deliverable to mail and chat clients.
type TicketImage struct {
	ID         string
	TicketID   string
	Tag        ImageTag
	URL        string
	UploadedAt time.Time
}
