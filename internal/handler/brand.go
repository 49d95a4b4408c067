package handler

import (
	"log/slog"
	"net/http"

	chatRepo "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/repositories/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/httputil"
)

// BrandHandler handles brand lookups
type BrandHandler struct {
	brands chatRepo.BrandRepository
	logger *slog.Logger
}

// NewBrandHandler creates a new brand handler
func NewBrandHandler(brands chatRepo.BrandRepository, logger *slog.Logger) *BrandHandler {
	return &BrandHandler{brands: brands, logger: logger}
}

// GetBrand retrieves a brand by ID
// GET /api/brands/{id}
func (h *BrandHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	brandID, ok := PathParam(w, r, "id", "Brand ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	brand, err := h.brands.GetBrand(r.Context(), brandID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, brand)
}
