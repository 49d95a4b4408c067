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

// PostgresBrandRepository implements the BrandRepository interface using PostgreSQL
type PostgresBrandRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewBrandRepository creates a new PostgresBrandRepository
func NewBrandRepository(config *postgres.RepositoryConfig) chatRepo.BrandRepository {
	return &PostgresBrandRepository{
		pool:   config.Pool,
		logger: config.Logger,
	}
}

// GetBrand retrieves a brand by ID, scoped to user
func (r *PostgresBrandRepository) GetBrand(ctx context.Context, brandID, userID string) (*chatModels.Brand, error) {
	query := `
		SELECT id, user_id, name, website_url, tone_of_voice, audience, guidelines, details, created_at, updated_at
		FROM brands
		WHERE id = $1 AND user_id = $2
	`

	var brand chatModels.Brand
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, brandID, userID).Scan(
		&brand.ID,
		&brand.UserID,
		&brand.Name,
		&brand.WebsiteURL,
		&brand.ToneOfVoice,
		&brand.Audience,
		&brand.Guidelines,
		&brand.Details, // pgx handles JSONB -> map
		&brand.CreatedAt,
		&brand.UpdatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("brand %s: %w", brandID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get brand: %w", err)
	}

	return &brand, nil
}
