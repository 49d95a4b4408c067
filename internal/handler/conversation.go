package handler

import (
	"context"
	"log/slog"
	"net/http"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/repositories"
	chatRepo "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/repositories/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/generation"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/httputil"
)

// ConversationHandler handles conversation CRUD and generation lifecycle
// endpoints backed by the generation manager.
type ConversationHandler struct {
	conversations chatRepo.ConversationRepository
	messages      chatRepo.MessageRepository
	txManager     repositories.TransactionManager
	manager       *generation.Manager
	logger        *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(
	conversations chatRepo.ConversationRepository,
	messages chatRepo.MessageRepository,
	txManager repositories.TransactionManager,
	manager *generation.Manager,
	logger *slog.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		txManager:     txManager,
		manager:       manager,
		logger:        logger,
	}
}

// CreateConversationRequest is the body for conversation creation. The
// optional first message is stored atomically with the conversation.
type CreateConversationRequest struct {
	BrandID      string                      `json:"brand_id"`
	Title        string                      `json:"title"`
	Mode         chatModels.ConversationMode `json:"mode"`
	FirstMessage string                      `json:"first_message,omitempty"`
}

// CreateConversation creates a conversation, optionally with its first
// user message in the same transaction
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BrandID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "brand_id is required")
		return
	}
	if req.Mode == "" {
		req.Mode = chatModels.ModeChat
	}
	if !req.Mode.Valid() {
		httputil.RespondError(w, http.StatusBadRequest, "unknown conversation mode")
		return
	}

	conv := &chatModels.Conversation{
		BrandID: req.BrandID,
		UserID:  userID,
		Title:   req.Title,
		Mode:    req.Mode,
	}

	err := h.txManager.ExecTx(r.Context(), func(ctx context.Context) error {
		if err := h.conversations.CreateConversation(ctx, conv); err != nil {
			return err
		}
		if req.FirstMessage == "" {
			return nil
		}
		return h.messages.AppendMessage(ctx, &chatModels.Message{
			ConversationID: conv.ID,
			Role:           chatModels.RoleUser,
			Content:        req.FirstMessage,
		})
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// ListConversations retrieves all conversations for a brand
// GET /api/brands/{id}/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	brandID, ok := PathParam(w, r, "id", "Brand ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	conversations, err := h.conversations.ListConversationsByBrand(r.Context(), brandID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conversations)
}

// GetConversation retrieves a single conversation by ID
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	conv, err := h.conversations.GetConversation(r.Context(), conversationID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// ListMessages retrieves a conversation's messages in creation order
// GET /api/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	// Ownership check before reading messages.
	userID := httputil.GetUserID(r)
	if _, err := h.conversations.GetConversation(r.Context(), conversationID, userID); err != nil {
		handleError(w, err)
		return
	}

	messages, err := h.messages.ListMessages(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messages)
}

// DeleteConversation soft-deletes a conversation
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	if err := h.conversations.DeleteConversation(r.Context(), conversationID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StopGeneration cancels an in-flight generation for a conversation. A
// stop is not an error: the generation completes without a failure
// notification. Stopping a conversation with nothing in flight is a no-op.
// POST /api/conversations/{id}/stop
func (h *ConversationHandler) StopGeneration(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	h.manager.Stop(conversationID)
	w.WriteHeader(http.StatusAccepted)
}

// GetGeneration returns the tracked state of a conversation's generation
// GET /api/conversations/{id}/generation
func (h *ConversationHandler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	snapshot, ok := h.manager.Snapshot(conversationID)
	if !ok {
		httputil.RespondError(w, http.StatusNotFound, "no tracked generation for conversation")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, snapshot)
}

// ConsumePendingUpdate hands out a completed generation's result exactly
// once. A second call, or a call for a conversation without a completed
// result, returns 204.
// POST /api/conversations/{id}/pending-update
func (h *ConversationHandler) ConsumePendingUpdate(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	update := h.manager.ConsumePendingUpdate(conversationID)
	if update == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, update)
}

// ListNotifications returns queued completion notifications
// GET /api/notifications
func (h *ConversationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.manager.Notifications())
}

// DismissNotification removes a conversation's completion notification
// DELETE /api/notifications/{id}
func (h *ConversationHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	h.manager.Dismiss(conversationID)
	w.WriteHeader(http.StatusNoContent)
}

// DismissAllNotifications clears the notification queue
// DELETE /api/notifications
func (h *ConversationHandler) DismissAllNotifications(w http.ResponseWriter, r *http.Request) {
	h.manager.DismissAll()
	w.WriteHeader(http.StatusNoContent)
}
