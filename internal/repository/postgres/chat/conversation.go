// Package chat provides the PostgreSQL implementations of the chat domain
// repositories.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain"
	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	chatRepo "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/repositories/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/repository/postgres"
)

// PostgresConversationRepository implements the ConversationRepository interface using PostgreSQL
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *postgres.RepositoryConfig) chatRepo.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		logger: config.Logger,
	}
}

// CreateConversation creates a new conversation
func (r *PostgresConversationRepository) CreateConversation(ctx context.Context, conv *chatModels.Conversation) error {
	query := `
		INSERT INTO conversations (brand_id, user_id, title, mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, created_at, updated_at
	`

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		conv.BrandID,
		conv.UserID,
		conv.Title,
		conv.Mode,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("brand %s: %w", conv.BrandID, domain.ErrNotFound)
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// GetConversation retrieves a conversation by ID
func (r *PostgresConversationRepository) GetConversation(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error) {
	query := `
		SELECT id, brand_id, user_id, title, mode, preview, last_message_at, created_at, updated_at, deleted_at
		FROM conversations
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`

	var conv chatModels.Conversation
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, conversationID, userID).Scan(
		&conv.ID,
		&conv.BrandID,
		&conv.UserID,
		&conv.Title,
		&conv.Mode,
		&conv.Preview,
		&conv.LastMessageAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.DeletedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// ListConversationsByBrand retrieves all conversations for a brand, most
// recently active first
func (r *PostgresConversationRepository) ListConversationsByBrand(ctx context.Context, brandID, userID string) ([]chatModels.Conversation, error) {
	query := `
		SELECT id, brand_id, user_id, title, mode, preview, last_message_at, created_at, updated_at, deleted_at
		FROM conversations
		WHERE brand_id = $1 AND user_id = $2 AND deleted_at IS NULL
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
	`

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, brandID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []chatModels.Conversation
	for rows.Next() {
		var conv chatModels.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.BrandID,
			&conv.UserID,
			&conv.Title,
			&conv.Mode,
			&conv.Preview,
			&conv.LastMessageAt,
			&conv.CreatedAt,
			&conv.UpdatedAt,
			&conv.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

// UpdateConversationSummary updates the denormalized preview and
// last-message timestamp
func (r *PostgresConversationRepository) UpdateConversationSummary(ctx context.Context, conversationID string, preview string, lastMessageAt time.Time) error {
	query := `
		UPDATE conversations
		SET preview = $2, last_message_at = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, conversationID, preview, lastMessageAt)
	if err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	return nil
}

// DeleteConversation soft-deletes a conversation
func (r *PostgresConversationRepository) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	query := `
		UPDATE conversations
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`

	executor := postgres.GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	return nil
}
