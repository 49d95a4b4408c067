package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/capabilities"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/config"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain"
	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	chatRepo "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/repositories/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/generation"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/httputil"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/prompt"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/providers"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/streaming"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/tools"
)

// ChatHandler handles the streaming chat generation endpoint
type ChatHandler struct {
	providers   *providers.Registry
	caps        *capabilities.Registry
	stream      *streaming.Handler
	customModes chatRepo.CustomModeRepository
	manager     *generation.Manager
	cfg         *config.Config
	logger      *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	providerRegistry *providers.Registry,
	capabilityRegistry *capabilities.Registry,
	streamHandler *streaming.Handler,
	customModes chatRepo.CustomModeRepository,
	manager *generation.Manager,
	cfg *config.Config,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		providers:   providerRegistry,
		caps:        capabilityRegistry,
		stream:      streamHandler,
		customModes: customModes,
		manager:     manager,
		cfg:         cfg,
		logger:      logger,
	}
}

// Generate runs one generation and streams it back as newline-delimited
// JSON events. The generation is registered with the manager so the stop
// endpoint can cancel it and so the result is persisted at completion.
// POST /api/chat
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req domainChat.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserID = userID

	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = h.cfg.DefaultModel
	}

	provider, err := h.providers.ForModel(model)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Unknown models stream plain text only: no tools, no thinking.
	caps := h.caps.GetModelCapabilities(model)
	maxTokens := h.cfg.MaxOutputTokens
	if caps != nil && caps.MaxOutput > 0 && caps.MaxOutput < maxTokens {
		maxTokens = caps.MaxOutput
	}
	var toolSet []domainChat.ToolDefinition
	if caps != nil && caps.SupportsTools {
		toolSet = tools.Definitions(req.Mode)
	}

	built := prompt.Build(&req, prompt.Options{CustomMode: h.resolveCustomMode(r.Context(), &req)})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	adopted := h.manager.Adopt(generation.AdoptParams{
		ConversationID: req.ConversationID,
		Title:          req.LastUserMessage(),
		BrandID:        brandID(req.Brand),
		Cancel:         cancel,
	})
	if !adopted {
		httputil.RespondError(w, http.StatusConflict, "generation already in flight for conversation")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writer := &trackedWriter{
		inner:          streaming.NewNDJSONWriter(w),
		manager:        h.manager,
		conversationID: req.ConversationID,
	}

	result, err := h.stream.Handle(ctx, provider, built, toolSet, streaming.Options{
		Model:        model,
		MaxTokens:    maxTokens,
		Thinking:     caps != nil && caps.SupportsThinking,
		UserMessages: userMessages(&req),
		BrandDomain:  brandDomain(req.Brand),
	}, writer)

	h.manager.CompleteAdopted(req.ConversationID, outcomeFor(result, err))

	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error("generation stream failed",
			"conversation_id", req.ConversationID,
			"model", model,
			"error", err,
		)
	}
}

// resolveCustomMode loads the named custom mode. A missing or unreadable
// mode degrades to the default prompt branch rather than failing the
// request.
func (h *ChatHandler) resolveCustomMode(ctx context.Context, req *domainChat.ChatRequest) *chatModels.CustomMode {
	if req.CustomModeID == nil || *req.CustomModeID == "" {
		return nil
	}
	mode, err := h.customModes.GetCustomMode(ctx, *req.CustomModeID, req.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Warn("custom mode lookup failed",
				"custom_mode_id", *req.CustomModeID,
				"error", err,
			)
		}
		return nil
	}
	return mode
}

// trackedWriter tees every wire event into the generation manager so
// snapshots and the stop endpoint see the in-flight state.
type trackedWriter struct {
	inner          streaming.EventWriter
	manager        *generation.Manager
	conversationID string
}

func (t *trackedWriter) WriteEvent(ev chatModels.StreamEvent) error {
	t.manager.ApplyEvent(t.conversationID, &ev)
	return t.inner.WriteEvent(ev)
}

func outcomeFor(result *streaming.Result, err error) generation.Outcome {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return generation.Outcome{Stopped: true}
		}
		return generation.Outcome{Err: err}
	}
	return generation.Outcome{
		Text:      result.Text,
		Reasoning: result.Reasoning,
		Products:  result.Products,
		Usage:     result.Usage,
	}
}

func userMessages(req *domainChat.ChatRequest) []string {
	var out []string
	for _, m := range req.Messages {
		if m.Role == chatModels.RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

func brandID(brand *chatModels.Brand) string {
	if brand == nil {
		return ""
	}
	return brand.ID
}

func brandDomain(brand *chatModels.Brand) string {
	if brand == nil || brand.WebsiteURL == nil {
		return ""
	}
	return *brand.WebsiteURL
}
