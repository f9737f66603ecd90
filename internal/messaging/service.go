// Package messaging provides the transport abstraction for shiftbot.
//
// It defines a pluggable message delivery Service plus the Telegram-backed
// implementation that feeds inbound updates to the conversation dispatcher.
package messaging

import (
	"context"

	"github.com/shiftdesk/shiftbot/internal/models"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// SendMessage sends a plain text message to a recipient identity.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMessageWithReplies sends a message offering quick-reply suggestions.
	// An empty suggestion list behaves like SendMessage.
	SendMessageWithReplies(ctx context.Context, to string, body string, replies []string) error

	// Start begins background processing (e.g., polling for updates).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// Dispatcher routes an inbound message to the conversation engine and returns
// the reply to deliver, if any. Declared here so the transport does not depend
// on the engine package directly.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg models.Message) (models.Reply, bool)
}
