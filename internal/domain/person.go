package domain

import "time"

// Person is anyone who can report, handle or be notified about tickets.
type Person struct {
	ID         string
	Name       string
	Email      string
	ChatUserID string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
