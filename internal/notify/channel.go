package notify

import (
	"context"
	"errors"
)

// Channel names used for metrics and logs.
const (
	ChannelEmail = "email"
	ChannelChat  = "chat"
)

// ErrInvalidRecipient marks an address that can never be delivered to; callers must not retry.
var ErrInvalidRecipient = errors.New("invalid recipient")

// EmailSender delivers a rendered HTML email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// ChatPusher delivers a structured chat message to one chat user.
type ChatPusher interface {
	Push(ctx context.Context, chatUserID string, msg ChatMessage) error
}
