package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const pushPath = "/v2/bot/message/push"

var chatUserIDPattern = regexp.MustCompile(`^U[0-9a-fA-F]{32}$`)

// ValidChatUserID reports whether id has the "U" + 32 hex form.
func ValidChatUserID(id string) bool {
	return chatUserIDPattern.MatchString(id)
}

// ChatClient pushes flex messages to the messaging API.
type ChatClient struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewChatClient returns nil when no access token is configured.
func NewChatClient(baseURL, token string, timeout time.Duration) *ChatClient {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return &ChatClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, timeout: timeout}
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []ChatMessage `json:"messages"`
}

// Push validates the chat user id before any network call.
func (c *ChatClient) Push(ctx context.Context, chatUserID string, msg ChatMessage) error {
	if !ValidChatUserID(chatUserID) {
		return fmt.Errorf("%w: chat user id %q", ErrInvalidRecipient, chatUserID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout <= 0 {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(c.baseURL + pushPath)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	agent.JSON(pushRequest{To: chatUserID, Messages: []ChatMessage{msg}})
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("chat push: %w", err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("chat push: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("chat push: status %d: %s", code, truncate(string(body), 200))
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
