package chat

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// ChatRequest is the HTTP DTO for POST /api/chat: the full input to prompt
// building and stream orchestration. Immutable per request.
type ChatRequest struct {
	ConversationID string                      `json:"conversation_id"`
	UserID         string                      `json:"-"` // set from auth context, never from the body
	Messages       []RequestMessage            `json:"messages"`
	Mode           chatModels.ConversationMode `json:"mode"`
	Model          string                      `json:"model,omitempty"`

	// Mode-specific parameters.
	EmailType         *string              `json:"email_type,omitempty"`
	FlowType          *chatModels.FlowType `json:"flow_type,omitempty"`
	RegenerateSection bool                 `json:"regenerate_section,omitempty"`
	CustomModeID      *string              `json:"custom_mode_id,omitempty"`

	// Brand/context payload, passed through opaquely to prompt building.
	Brand *chatModels.Brand `json:"brand,omitempty"`

	Attachments []chatModels.Attachment `json:"attachments,omitempty"`
}

// RequestMessage is one prior message in the request body.
type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks the request shape. Mode defaults to chat when empty so
// older clients keep working.
func (r *ChatRequest) Validate() error {
	if r.Mode == "" {
		r.Mode = chatModels.ModeChat
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.ConversationID, validation.Required),
		validation.Field(&r.Messages, validation.Required, validation.Each(validation.By(validateRequestMessage))),
		validation.Field(&r.Mode, validation.By(validateMode)),
	)
}

func validateRequestMessage(value interface{}) error {
	msg, ok := value.(RequestMessage)
	if !ok {
		return validation.NewError("validation_message", "invalid message entry")
	}
	return validation.ValidateStruct(&msg,
		validation.Field(&msg.Role, validation.Required, validation.In(chatModels.RoleUser, chatModels.RoleAssistant)),
	)
}

func validateMode(value interface{}) error {
	mode, _ := value.(chatModels.ConversationMode)
	if !mode.Valid() {
		return validation.NewError("validation_mode", "unknown conversation mode")
	}
	return nil
}

// LastUserMessage returns the content of the most recent user message, or
// empty when none exists.
func (r *ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == chatModels.RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// UserMessageCount reports how many user-role messages the request carries.
func (r *ChatRequest) UserMessageCount() int {
	n := 0
	for _, m := range r.Messages {
		if m.Role == chatModels.RoleUser {
			n++
		}
	}
	return n
}
