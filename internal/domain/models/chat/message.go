package chat

import "time"

// Message roles. Only user and assistant appear in stored history; the
// system prompt is built per request and never persisted as a message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a conversation's ordered history.
type Message struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	Reasoning      *string                `json:"reasoning,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Attachment is a pre-encoded file or image attached to a request. The core
// passes it through to the provider untouched.
type Attachment struct {
	Kind      string `json:"kind"` // "image" or "file"
	MediaType string `json:"media_type"`
	Name      string `json:"name,omitempty"`
	Data      string `json:"data"` // base64
}
