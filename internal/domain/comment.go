package domain

import "time"

// CommentType separates system generated notes from user input.
type CommentType string

const (
	CommentTypeUser         CommentType = "USER"
	CommentTypeStatusChange CommentType = "STATUS_CHANGE"
)

// Comment is an append-only note on a ticket thread.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Type      CommentType
	Body      string
	CreatedAt time.Time
}
