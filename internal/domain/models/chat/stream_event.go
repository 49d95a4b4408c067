package chat

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a wire-protocol event kind.
// The set is closed: every event emitted by the server and consumed by the
// generation manager is one of these kinds. Unknown JSON fields on a known
// kind are ignored at the decode boundary; unknown kinds surface as
// ErrUnknownEventType so callers can decide whether to skip or fail.
type EventType string

const (
	EventStatus             EventType = "status"
	EventText               EventType = "text"
	EventThinking           EventType = "thinking"
	EventThinkingStart      EventType = "thinking_start"
	EventThinkingEnd        EventType = "thinking_end"
	EventToolUse            EventType = "tool_use"
	EventPendingArtifact    EventType = "pending_artifact"
	EventPendingAction      EventType = "pending_action"
	EventConversationPlan   EventType = "conversation_plan"
	EventSuggestedAction    EventType = "suggested_action"
	EventProducts           EventType = "products"
	EventArtifactSuggestion EventType = "artifact_suggestion"
	EventError              EventType = "error"
	EventDone               EventType = "done"
)

// Status values carried by EventStatus events. Machine-readable generation
// phases, not user-facing copy.
const (
	StatusAnalyzing    = "analyzing"
	StatusSearchingWeb = "searching_web"
	StatusThinking     = "thinking"
	StatusWriting      = "writing"
	StatusFinalizing   = "finalizing"
)

// Tool call phases carried by EventToolUse events.
const (
	ToolPhaseStart = "start"
	ToolPhaseEnd   = "end"
)

// StreamEvent is the wire-protocol unit: one newline-delimited JSON object
// on the response stream. Exactly the fields for the event's kind are set;
// everything else is omitted from the encoding.
//
// Ordering invariant: events for a single generation are emitted and must be
// applied strictly in order. An "error" event is terminal; nothing follows it.
type StreamEvent struct {
	Type EventType `json:"type"`

	// status; tool_use reuses this field for its start/end phase
	Status string `json:"status,omitempty"`

	// text / thinking deltas
	Content string `json:"content,omitempty"`

	// tool_use
	Tool string `json:"tool,omitempty"`

	// pending_artifact
	Artifact *PendingArtifact `json:"artifact,omitempty"`

	// pending_action (single) and suggested_action (one or more)
	Action  *PendingAction  `json:"action,omitempty"`
	Actions []PendingAction `json:"actions,omitempty"`

	// conversation_plan
	Plan *ConversationPlan `json:"plan,omitempty"`

	// products
	Products []ProductLink `json:"products,omitempty"`

	// artifact_suggestion
	Suggestion *ArtifactSuggestion `json:"suggestion,omitempty"`

	// error
	Error string `json:"error,omitempty"`

	// done
	Usage *GenerationUsage `json:"usage,omitempty"`
}

// GenerationUsage is the terminal metadata carried by a done event.
type GenerationUsage struct {
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// ErrUnknownEventType is returned by DecodeEvent for kinds outside the
// closed set. Callers decoding a live stream should skip these rather than
// abort, so older clients tolerate newer servers.
type ErrUnknownEventType struct {
	Type string
}

func (e *ErrUnknownEventType) Error() string {
	return fmt.Sprintf("unknown stream event type %q", e.Type)
}

// IsTerminal reports whether no further events may follow this one.
func (e *StreamEvent) IsTerminal() bool {
	return e.Type == EventError || e.Type == EventDone
}

// DecodeEvent parses one NDJSON line into a StreamEvent. Unknown fields are
// ignored; a missing or unknown type yields ErrUnknownEventType.
func DecodeEvent(line []byte) (*StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("decode stream event: %w", err)
	}
	switch ev.Type {
	case EventStatus, EventText, EventThinking, EventThinkingStart, EventThinkingEnd,
		EventToolUse, EventPendingArtifact, EventPendingAction, EventConversationPlan,
		EventSuggestedAction, EventProducts, EventArtifactSuggestion, EventError, EventDone:
		return &ev, nil
	default:
		return nil, &ErrUnknownEventType{Type: string(ev.Type)}
	}
}

// Constructors for the common kinds. The stream handler and tool dispatcher
// build events through these so payload fields stay consistent per kind.

func NewStatusEvent(status string) StreamEvent {
	return StreamEvent{Type: EventStatus, Status: status}
}

func NewTextEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventText, Content: delta}
}

func NewThinkingEvent(delta string) StreamEvent {
	return StreamEvent{Type: EventThinking, Content: delta}
}

func NewToolUseEvent(tool, phase string) StreamEvent {
	return StreamEvent{Type: EventToolUse, Tool: tool, Status: phase}
}

func NewErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Error: message}
}

func NewDoneEvent(usage *GenerationUsage) StreamEvent {
	return StreamEvent{Type: EventDone, Usage: usage}
}
