// Package tools maps model tool invocations onto wire events. Proposal
// tools never perform their effect: they emit a pending_* event carrying
// the proposed data verbatim, and the actual mutation happens outside this
// core only after explicit user approval. Informational tools pass through
// with a status transition. Nothing here mutates state owned by the core,
// which keeps the stream-processing loop side-effect-free and replayable.
package tools

import (
	"fmt"
	"log/slog"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

// Dispatcher turns tool calls into stream events.
type Dispatcher struct {
	logger *slog.Logger
}

// NewDispatcher creates a new tool dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Dispatch maps a named tool invocation with already-validated arguments to
// the wire event describing its effect. Returns an error for unknown tools;
// callers log and continue rather than failing the stream.
func (d *Dispatcher) Dispatch(call *domainChat.ToolCall) (chatModels.StreamEvent, error) {
	switch call.Name {
	case ToolCreateConversation:
		return chatModels.StreamEvent{
			Type: chatModels.EventPendingAction,
			Action: &chatModels.PendingAction{
				Kind:    chatModels.ActionCreateConversation,
				Title:   inputString(call.Input, "title"),
				Payload: call.Input,
			},
		}, nil

	case ToolCreateConversations:
		plan := conversationList(call.Input, "conversations")
		return chatModels.StreamEvent{
			Type: chatModels.EventPendingAction,
			Action: &chatModels.PendingAction{
				Kind:    chatModels.ActionCreateConversation,
				Title:   fmt.Sprintf("%d conversations", len(plan)),
				Payload: call.Input,
			},
			Actions: plan,
		}, nil

	case ToolSuggestConversationPlan:
		return chatModels.StreamEvent{
			Type: chatModels.EventConversationPlan,
			Plan: &chatModels.ConversationPlan{
				Title:         inputString(call.Input, "title"),
				Conversations: conversationList(call.Input, "conversations"),
			},
		}, nil

	case ToolSuggestActions:
		return chatModels.StreamEvent{
			Type:    chatModels.EventSuggestedAction,
			Actions: actionList(call.Input, "actions"),
		}, nil

	case ToolCreateArtifact:
		return chatModels.StreamEvent{
			Type: chatModels.EventPendingArtifact,
			Artifact: &chatModels.PendingArtifact{
				Kind:    inputString(call.Input, "kind"),
				Title:   inputString(call.Input, "title"),
				Content: inputString(call.Input, "content"),
			},
		}, nil

	case ToolWebSearch:
		return chatModels.NewStatusEvent(chatModels.StatusSearchingWeb), nil

	case ToolInvokeAgent:
		return chatModels.NewStatusEvent(chatModels.StatusAnalyzing), nil

	default:
		return chatModels.StreamEvent{}, fmt.Errorf("unknown tool %q", call.Name)
	}
}

// IsProposal reports whether the tool only describes an effect requiring
// user approval.
func IsProposal(name string) bool {
	switch name {
	case ToolCreateConversation, ToolCreateConversations,
		ToolSuggestConversationPlan, ToolSuggestActions, ToolCreateArtifact:
		return true
	}
	return false
}

func inputString(input map[string]interface{}, key string) string {
	s, _ := input[key].(string)
	return s
}

// conversationList pulls proposed conversation entries out of a tool input
// array. Malformed entries are skipped, not errors: the proposal surfaces
// whatever was parseable.
func conversationList(input map[string]interface{}, key string) []chatModels.PendingAction {
	raw, _ := input[key].([]interface{})
	out := make([]chatModels.PendingAction, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, chatModels.PendingAction{
			Kind:    chatModels.ActionCreateConversation,
			Title:   inputString(m, "title"),
			Payload: m,
		})
	}
	return out
}

func actionList(input map[string]interface{}, key string) []chatModels.PendingAction {
	raw, _ := input[key].([]interface{})
	out := make([]chatModels.PendingAction, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, chatModels.PendingAction{
			Kind:    chatModels.ActionSuggestedUIAction,
			Title:   inputString(m, "title"),
			Payload: m,
		})
	}
	return out
}
