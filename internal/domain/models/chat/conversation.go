package chat

import "time"

// ConversationMode selects which prompt-building branch and tool set apply.
type ConversationMode string

const (
	// ModeChat is the default free-form assistant mode.
	ModeChat ConversationMode = "chat"
	// ModeDesign is the one-shot structured email composition mode: the
	// first user message is replaced with a synthesized multi-variant
	// instruction and history is discarded.
	ModeDesign ConversationMode = "design"
	// ModeFlow is the multi-step email flow composition mode.
	ModeFlow ConversationMode = "flow"
	// ModeCustom applies a user-defined custom mode's instruction body.
	ModeCustom ConversationMode = "custom"
)

// Valid reports whether m is a member of the closed mode set.
func (m ConversationMode) Valid() bool {
	switch m {
	case ModeChat, ModeDesign, ModeFlow, ModeCustom:
		return true
	}
	return false
}

// FlowType names a concrete email-flow outline kind (legacy single-flow path).
type FlowType string

const (
	FlowWelcome         FlowType = "welcome"
	FlowAbandonedCart   FlowType = "abandoned_cart"
	FlowBrowseAbandoned FlowType = "browse_abandonment"
	FlowPostPurchase    FlowType = "post_purchase"
	FlowWinback         FlowType = "winback"
)

// Valid reports whether f names a known flow outline kind.
func (f FlowType) Valid() bool {
	switch f {
	case FlowWelcome, FlowAbandonedCart, FlowBrowseAbandoned, FlowPostPurchase, FlowWinback:
		return true
	}
	return false
}

// Conversation is the persistent chat session record. Preview and
// LastMessageAt are denormalized summary fields updated by the generation
// manager at completion time.
type Conversation struct {
	ID            string           `json:"id"`
	BrandID       string           `json:"brand_id"`
	UserID        string           `json:"user_id"`
	Title         string           `json:"title"`
	Mode          ConversationMode `json:"mode"`
	Preview       *string          `json:"preview,omitempty"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     *time.Time       `json:"deleted_at,omitempty"`
}

// CustomMode is a user-defined conversation mode: a stored instruction body
// with {{brand}} and {{message}} interpolation points. Retrieved context is
// not interpolated; it is spliced into the system prompt after the brand
// block like every other mode.
type CustomMode struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Instruction string    `json:"instruction"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
