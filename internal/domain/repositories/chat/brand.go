package chat

import (
	"context"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// BrandRepository defines data access for brand records.
type BrandRepository interface {
	// GetBrand retrieves a brand by ID, scoped to user.
	// Returns domain.ErrNotFound if missing.
	GetBrand(ctx context.Context, brandID, userID string) (*chat.Brand, error)
}

// CustomModeRepository defines data access for user-defined conversation modes.
type CustomModeRepository interface {
	// GetCustomMode retrieves a custom mode by ID, scoped to user.
	// Returns domain.ErrNotFound if missing.
	GetCustomMode(ctx context.Context, modeID, userID string) (*chat.CustomMode, error)
}
