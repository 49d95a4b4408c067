// Package prompt maps a chat request, its conversation mode, and optional
// custom instructions and retrieved context onto a system prompt and a
// normalized message list. Pure: no I/O, no storage access; retrieved
// context is supplied by the caller.
package prompt

import (
	"fmt"
	"strings"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

// Branch identifies which prompt-building branch fired for a request.
// Exactly one branch fires per request; selection is a fixed priority
// order, not a dynamic match.
type Branch string

const (
	BranchPersonal    Branch = "personal"
	BranchCustomMode  Branch = "custom_mode"
	BranchFlow        Branch = "flow"
	BranchFlowOutline Branch = "flow_outline"
	BranchDesign      Branch = "design_first_message"
	BranchDefault     Branch = "default"
)

// BuiltPrompt is the output of prompt building: a system prompt and a
// possibly-rewritten message list. The design branch replaces the message
// list entirely; every other branch passes it through normalized.
type BuiltPrompt struct {
	System   string
	Messages []domainChat.PromptMessage
	Branch   Branch
}

// Options carries the caller-supplied inputs that are not part of the
// request itself.
type Options struct {
	// CustomMode is the resolved user-defined mode, if the request named one.
	CustomMode *chatModels.CustomMode

	// RetrievedContext is pre-fetched context to splice into the system
	// prompt. Empty means nothing to splice.
	RetrievedContext string

	// MemoryEnabled appends memory-tool usage instructions on the default
	// branch.
	MemoryEnabled bool
}

// Build selects exactly one prompt branch for the request, first match wins:
//
//  1. no brand attached        -> minimal personal-assistant prompt
//  2. custom mode instruction  -> interpolated custom instruction
//  3. flow mode                -> flow composition prompt
//  4. single flow sub-type     -> flow outline prompt (legacy path)
//  5. design mode, first user message, no section regeneration
//     -> multi-variant composition prompt, message list REPLACED
//  6. otherwise                -> default brand prompt
//
// Build never fails; absent fields degrade to placeholders.
func Build(req *domainChat.ChatRequest, opts Options) BuiltPrompt {
	messages := normalizeMessages(req)

	// 1. No brand/workspace context: minimal assistant, untouched messages.
	if req.Brand == nil {
		return BuiltPrompt{
			System:   personalSystemPrompt,
			Messages: messages,
			Branch:   BranchPersonal,
		}
	}

	brandBlock := renderBrandContext(req.Brand)

	// 2. Custom mode with a non-empty instruction body.
	if opts.CustomMode != nil && strings.TrimSpace(opts.CustomMode.Instruction) != "" {
		system := interpolateCustomMode(opts.CustomMode.Instruction, brandBlock, req.LastUserMessage())
		return BuiltPrompt{
			System:   spliceContext(system, opts.RetrievedContext),
			Messages: messages,
			Branch:   BranchCustomMode,
		}
	}

	// 3. Multi-step flow composition mode.
	if req.Mode == chatModels.ModeFlow {
		system := brandBlock + "\n\n" + flowInstructions
		return BuiltPrompt{
			System:   spliceContext(system, opts.RetrievedContext),
			Messages: messages,
			Branch:   BranchFlow,
		}
	}

	// 4. Single concrete flow sub-type (legacy outline path).
	if req.FlowType != nil && req.FlowType.Valid() {
		system := brandBlock + "\n\n" + fmt.Sprintf(flowOutlineInstructions, string(*req.FlowType))
		return BuiltPrompt{
			System:   system,
			Messages: messages,
			Branch:   BranchFlowOutline,
		}
	}

	// 5. One-shot design composition on the conversation's first user
	// message. History is discarded: this is a fresh composition, not a
	// continuation.
	if req.Mode == chatModels.ModeDesign && req.UserMessageCount() == 1 && !req.RegenerateSection {
		system := brandBlock + "\n\n" + designInstructions
		if req.EmailType != nil && *req.EmailType != "" {
			system += "\n" + fmt.Sprintf(designEmailTypeLine, *req.EmailType)
		}
		synthesized := fmt.Sprintf("Write the email. Request: %s", req.LastUserMessage())
		return BuiltPrompt{
			System: system,
			Messages: []domainChat.PromptMessage{{
				Role:        chatModels.RoleUser,
				Content:     synthesized,
				Attachments: req.Attachments,
			}},
			Branch: BranchDesign,
		}
	}

	// 6. Default branch.
	system := brandBlock + "\n\n" + defaultInstructions
	if g := req.Brand.Guidelines; g != nil && *g != "" {
		system += "\n\nBrand guidelines:\n" + *g
	}
	system = spliceContext(system, opts.RetrievedContext)
	if opts.MemoryEnabled {
		system += "\n\n" + memoryInstructions
	}
	return BuiltPrompt{
		System:   system,
		Messages: messages,
		Branch:   BranchDefault,
	}
}

// renderBrandContext renders the brand into the <brand_context> block.
// Missing fields become "N/A" placeholders.
func renderBrandContext(brand *chatModels.Brand) string {
	var b strings.Builder
	b.WriteString(brandContextOpenTag)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Brand: %s\n", orNA(brand.Name))
	fmt.Fprintf(&b, "Website: %s\n", orNAPtr(brand.WebsiteURL))
	fmt.Fprintf(&b, "Tone of voice: %s\n", orNAPtr(brand.ToneOfVoice))
	fmt.Fprintf(&b, "Audience: %s\n", orNAPtr(brand.Audience))
	b.WriteString(brandContextCloseTag)
	return b.String()
}

// interpolateCustomMode substitutes the custom mode's placeholders.
// Unrecognized placeholders are left as-is; the model tolerates them better
// than a hard failure would.
func interpolateCustomMode(instruction, brandBlock, userMessage string) string {
	replacer := strings.NewReplacer(
		"{{brand}}", brandBlock,
		"{{message}}", orNA(userMessage),
	)
	return replacer.Replace(instruction)
}

// spliceContext inserts retrieved context into the system prompt exactly
// once: immediately after the </brand_context> anchor when present,
// otherwise prepended. The block is never silently dropped, and splicing an
// already-spliced prompt is a no-op.
func spliceContext(system, retrieved string) string {
	if retrieved == "" {
		return system
	}
	// Already spliced: inserting again would duplicate prompt text.
	if strings.Contains(system, retrievedContextOpenTag) {
		return system
	}
	block := retrievedContextOpenTag + "\n" + retrieved + "\n" + retrievedContextCloseTag
	if idx := strings.Index(system, brandContextCloseTag); idx >= 0 {
		insertAt := idx + len(brandContextCloseTag)
		return system[:insertAt] + "\n\n" + block + system[insertAt:]
	}
	return block + "\n\n" + system
}

// normalizeMessages converts request messages to provider-facing prompt
// messages, attaching request attachments to the final user message.
func normalizeMessages(req *domainChat.ChatRequest) []domainChat.PromptMessage {
	messages := make([]domainChat.PromptMessage, 0, len(req.Messages))
	lastUserIdx := -1
	for i, m := range req.Messages {
		messages = append(messages, domainChat.PromptMessage{
			Role:    m.Role,
			Content: m.Content,
		})
		if m.Role == chatModels.RoleUser {
			lastUserIdx = i
		}
	}
	if lastUserIdx >= 0 && len(req.Attachments) > 0 {
		messages[lastUserIdx].Attachments = req.Attachments
	}
	return messages
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func orNAPtr(s *string) string {
	if s == nil {
		return "N/A"
	}
	return orNA(*s)
}
