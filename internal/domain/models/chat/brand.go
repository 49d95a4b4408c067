package chat

import "time"

// Brand is the workspace a conversation belongs to. The prompt builder
// renders its fields into the <brand_context> block; everything it does not
// recognize rides along in Details untouched.
type Brand struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Name        string                 `json:"name"`
	WebsiteURL  *string                `json:"website_url,omitempty"`
	ToneOfVoice *string                `json:"tone_of_voice,omitempty"`
	Audience    *string                `json:"audience,omitempty"`
	Guidelines  *string                `json:"guidelines,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}
