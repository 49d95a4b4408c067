package chat

// Confidence tiers for artifact detection. Only medium and high confidence
// results are surfaced on the stream.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Artifact kinds the post-stream detector can classify.
const (
	ArtifactKindEmail   = "email"
	ArtifactKindSubject = "subject_lines"
)

// EmailVariant is one labeled alternative inside a multi-variant composition.
type EmailVariant struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// ArtifactSuggestion is the post-hoc classification of finished text as a
// structured document. Variants is empty when no delimited alternatives were
// found; consumers then treat the whole text as a single variant.
type ArtifactSuggestion struct {
	Kind       string         `json:"kind"`
	Confidence Confidence     `json:"confidence"`
	Title      string         `json:"title,omitempty"`
	Variants   []EmailVariant `json:"variants,omitempty"`
}

// PendingArtifact is a model-proposed artifact awaiting user approval.
// The core never creates it; it only describes it.
type PendingArtifact struct {
	Kind     string         `json:"kind"`
	Title    string         `json:"title"`
	Content  string         `json:"content,omitempty"`
	Variants []EmailVariant `json:"variants,omitempty"`
}

// PendingAction is a model-proposed effect awaiting user approval, e.g.
// creating a conversation or a UI action suggestion.
type PendingAction struct {
	Kind    string                 `json:"kind"`
	Title   string                 `json:"title"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Action kinds for PendingAction.
const (
	ActionCreateConversation = "create_conversation"
	ActionSuggestedUIAction  = "ui_action"
)

// ConversationPlan is a model-proposed multi-conversation plan.
type ConversationPlan struct {
	Title         string          `json:"title,omitempty"`
	Conversations []PendingAction `json:"conversations"`
}

// ProductLink is a commerce link extracted from generated output.
type ProductLink struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}
