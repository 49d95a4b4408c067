package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain"
	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	chatRepo "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/repositories/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/repository/postgres"
)

// PostgresCustomModeRepository implements the CustomModeRepository interface using PostgreSQL
type PostgresCustomModeRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewCustomModeRepository creates a new PostgresCustomModeRepository
func NewCustomModeRepository(config *postgres.RepositoryConfig) chatRepo.CustomModeRepository {
	return &PostgresCustomModeRepository{
		pool:   config.Pool,
		logger: config.Logger,
	}
}

// GetCustomMode retrieves a custom mode by ID, scoped to user
func (r *PostgresCustomModeRepository) GetCustomMode(ctx context.Context, modeID, userID string) (*chatModels.CustomMode, error) {
	query := `
		SELECT id, user_id, name, instruction, created_at, updated_at
		FROM custom_modes
		WHERE id = $1 AND user_id = $2
	`

	var mode chatModels.CustomMode
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, modeID, userID).Scan(
		&mode.ID,
		&mode.UserID,
		&mode.Name,
		&mode.Instruction,
		&mode.CreatedAt,
		&mode.UpdatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("custom mode %s: %w", modeID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get custom mode: %w", err)
	}

	return &mode, nil
}
