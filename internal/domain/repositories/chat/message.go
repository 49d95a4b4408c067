package chat

import (
	"context"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// MessageRepository defines data access for conversation messages.
type MessageRepository interface {
	// AppendMessage appends a message to a conversation and fills in the
	// generated ID and timestamp on the passed model.
	AppendMessage(ctx context.Context, msg *chat.Message) error

	// ListMessages retrieves a conversation's messages in creation order.
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
}
