// Package generation owns the process-wide registry of in-flight and
// recently finished generations, keyed by conversation id. It survives the
// conversation view going away mid-generation: the stream keeps being
// consumed in the background, the final result is persisted, and the
// buffered terminal payload is handed to the next observer exactly once.
package generation

import (
	"time"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// Phase is the lifecycle phase of one tracked generation.
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseStopped   Phase = "stopped"
)

// Terminal reports whether the phase is final.
func (p Phase) Terminal() bool {
	return p != PhaseRunning
}

// PendingUpdate is the fully assembled terminal result of a generation,
// buffered between "finished" and "observed". Set exactly once at
// successful completion, cleared exactly once by the first consumer.
type PendingUpdate struct {
	// MessageID is the persisted row id. Empty on a client-side manager:
	// the terminal wire event arrives before the server's write, so the
	// client never learns the id and reloads messages instead.
	MessageID string                      `json:"message_id,omitempty"`
	Content   string                      `json:"content"`
	Reasoning string                      `json:"reasoning,omitempty"`
	Products  []chatModels.ProductLink    `json:"products,omitempty"`
	Usage     *chatModels.GenerationUsage `json:"usage,omitempty"`
}

// Snapshot is a copy of one generation's state handed to external readers.
// Readers never see the live entry, so they cannot race the decode loop
// that mutates it.
type Snapshot struct {
	ConversationID string                   `json:"conversation_id"`
	Title          string                   `json:"title"`
	BrandID        string                   `json:"brand_id,omitempty"`
	Phase          Phase                    `json:"phase"`
	Status         string                   `json:"status,omitempty"`
	Text           string                   `json:"text"`
	Reasoning      string                   `json:"reasoning,omitempty"`
	Products       []chatModels.ProductLink `json:"products,omitempty"`
	Events         int                      `json:"events"`
	Err            string                   `json:"error,omitempty"`
	StartedAt      time.Time                `json:"started_at"`
	CompletedAt    time.Time                `json:"completed_at,omitzero"`
	HasPending     bool                     `json:"has_pending"`
}

// CompletionNotification is queued for any generation that reaches a
// terminal state, except a user-initiated stop. Consumed by the UI layer
// and dismissed explicitly.
type CompletionNotification struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	BrandID        string    `json:"brand_id,omitempty"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Outcome is the terminal result of a generation, produced by the built-in
// stream consumer or reported by an adopting caller. Exactly one of the
// three shapes applies: success (Err nil, Stopped false), failure (Err
// set), or user stop (Stopped true).
type Outcome struct {
	Text      string
	Reasoning string
	Products  []chatModels.ProductLink
	Usage     *chatModels.GenerationUsage
	Err       error
	Stopped   bool
}

// entry is the live registry record for one conversation id. All mutation
// happens under the manager's lock.
type entry struct {
	conversationID string
	title          string
	brandID        string

	phase     Phase
	status    string
	text      []byte
	reasoning []byte
	products  []chatModels.ProductLink
	events    int
	err       string

	startedAt   time.Time
	completedAt time.Time

	pending *PendingUpdate

	cancel     func()
	onComplete func(Outcome)
	completed  bool // completion routine ran; guards exactly-once
}

func (e *entry) snapshot() Snapshot {
	products := make([]chatModels.ProductLink, len(e.products))
	copy(products, e.products)
	return Snapshot{
		ConversationID: e.conversationID,
		Title:          e.title,
		BrandID:        e.brandID,
		Phase:          e.phase,
		Status:         e.status,
		Text:           string(e.text),
		Reasoning:      string(e.reasoning),
		Products:       products,
		Events:         e.events,
		Err:            e.err,
		StartedAt:      e.startedAt,
		CompletedAt:    e.completedAt,
		HasPending:     e.pending != nil,
	}
}
