package handler

import (
	"log/slog"
	"net/http"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/capabilities"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/httputil"
)

// ModelsHandler handles HTTP requests for model capabilities
type ModelsHandler struct {
	registry *capabilities.Registry
	logger   *slog.Logger
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(registry *capabilities.Registry, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{registry: registry, logger: logger}
}

// ProviderResponse represents a provider with its models
type ProviderResponse struct {
	ID     string                           `json:"id"`
	Models []capabilities.ModelCapabilities `json:"models"`
}

// GetCapabilities returns every registered provider's models and their
// capabilities
// GET /api/models/capabilities
func (h *ModelsHandler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	var response []ProviderResponse
	for _, provider := range h.registry.GetAllProviders() {
		models, err := h.registry.ListProviderModels(provider)
		if err != nil {
			h.logger.Error("failed to list provider models", "provider", provider, "error", err)
			continue
		}
		response = append(response, ProviderResponse{ID: provider, Models: models})
	}

	httputil.RespondJSON(w, http.StatusOK, response)
}
