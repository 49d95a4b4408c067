package chat

import (
	"context"
	"time"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// ConversationRepository defines data access for conversation records.
type ConversationRepository interface {
	// CreateConversation creates a new conversation.
	CreateConversation(ctx context.Context, conv *chat.Conversation) error

	// GetConversation retrieves a conversation by ID, scoped to user.
	// Returns domain.ErrNotFound if missing or soft-deleted.
	GetConversation(ctx context.Context, conversationID, userID string) (*chat.Conversation, error)

	// ListConversationsByBrand retrieves all conversations for a brand,
	// most recently active first.
	ListConversationsByBrand(ctx context.Context, brandID, userID string) ([]chat.Conversation, error)

	// UpdateConversationSummary updates the denormalized preview text and
	// last-message timestamp. Called by the generation manager at
	// completion; a failed write surfaces as a failed generation.
	UpdateConversationSummary(ctx context.Context, conversationID string, preview string, lastMessageAt time.Time) error

	// DeleteConversation soft-deletes a conversation.
	DeleteConversation(ctx context.Context, conversationID, userID string) error
}
