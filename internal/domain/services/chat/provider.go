package chat

import (
	"context"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// ModelProvider is the black-box model capability: given a system prompt, a
// message list, and a tool set, produce an ordered stream of typed events.
// Adapters exist for Anthropic and for the lorem mock provider; nothing in
// the orchestration core depends on a concrete SDK.
type ModelProvider interface {
	// StreamGenerate opens a provider stream. The returned channel emits
	// events strictly in provider order and is closed after the terminal
	// metadata or error event. Cancel ctx to stop consumption.
	StreamGenerate(ctx context.Context, req *GenerateRequest) (<-chan ProviderEvent, error)

	// Name returns the provider name (e.g. "anthropic", "lorem").
	Name() string

	// SupportsModel returns true if the provider serves the given model id.
	SupportsModel(model string) bool
}

// GenerateRequest is the provider-facing request assembled from a built
// prompt and the request's tool set.
type GenerateRequest struct {
	System      string
	Messages    []PromptMessage
	Model       string
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature *float64
	Thinking    bool
}

// PromptMessage is a normalized (role, text) pair plus optional attachments.
type PromptMessage struct {
	Role        string
	Content     string
	Attachments []chatModels.Attachment
}

// ToolDefinition describes one tool offered to the provider.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ProviderEvent is one decoded unit from a provider stream. Exactly one of
// the pointer fields is set; a nil-everything event is a no-op the consumer
// skips (some provider frames carry nothing we forward).
type ProviderEvent struct {
	Delta    *Delta
	ToolCall *ToolCall
	Metadata *StreamMetadata
	Error    error
}

// DeltaKind distinguishes incremental content kinds on a provider stream.
type DeltaKind string

const (
	DeltaText          DeltaKind = "text"
	DeltaThinking      DeltaKind = "thinking"
	DeltaThinkingStart DeltaKind = "thinking_start"
	DeltaThinkingEnd   DeltaKind = "thinking_end"
)

// Delta is an incremental content fragment.
type Delta struct {
	Kind DeltaKind
	Text string
}

// ToolCall is a complete, already-assembled tool invocation from the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// StreamMetadata is the final event before the provider channel closes.
type StreamMetadata struct {
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}
