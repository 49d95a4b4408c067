package tools

import (
	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

// Tool names. Proposal tools describe an effect for user approval;
// informational tools pass through with a status transition.
const (
	ToolCreateConversation      = "create_conversation"
	ToolCreateConversations     = "create_conversations"
	ToolSuggestConversationPlan = "suggest_conversation_plan"
	ToolSuggestActions          = "suggest_actions"
	ToolCreateArtifact          = "create_artifact"
	ToolWebSearch               = "web_search"
	ToolInvokeAgent             = "invoke_agent"
)

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

// Definitions returns the tool set offered to the provider for a
// conversation mode. Design mode gets no tools: it is a one-shot
// composition and tool use would only distract the model from it.
func Definitions(mode chatModels.ConversationMode) []domainChat.ToolDefinition {
	if mode == chatModels.ModeDesign {
		return nil
	}

	defs := []domainChat.ToolDefinition{
		{
			Name:        ToolCreateConversation,
			Description: "Propose creating a new conversation for a separate piece of work. The user must approve before anything is created.",
			InputSchema: objectSchema(map[string]interface{}{
				"title":  stringProp("Title for the proposed conversation"),
				"prompt": stringProp("Opening instruction for the proposed conversation"),
			}, "title"),
		},
		{
			Name:        ToolCreateConversations,
			Description: "Propose creating several conversations at once, one per item.",
			InputSchema: objectSchema(map[string]interface{}{
				"conversations": map[string]interface{}{
					"type":        "array",
					"description": "Proposed conversations",
					"items": objectSchema(map[string]interface{}{
						"title":  stringProp("Title"),
						"prompt": stringProp("Opening instruction"),
					}, "title"),
				},
			}, "conversations"),
		},
		{
			Name:        ToolSuggestConversationPlan,
			Description: "Propose a multi-conversation campaign plan for the user to review.",
			InputSchema: objectSchema(map[string]interface{}{
				"title": stringProp("Plan title"),
				"conversations": map[string]interface{}{
					"type":        "array",
					"description": "Planned conversations in order",
					"items": objectSchema(map[string]interface{}{
						"title":  stringProp("Title"),
						"prompt": stringProp("Opening instruction"),
					}, "title"),
				},
			}, "conversations"),
		},
		{
			Name:        ToolSuggestActions,
			Description: "Suggest one or more follow-up actions the user could take in the app.",
			InputSchema: objectSchema(map[string]interface{}{
				"actions": map[string]interface{}{
					"type":        "array",
					"description": "Suggested actions",
					"items": objectSchema(map[string]interface{}{
						"title": stringProp("Action label"),
					}, "title"),
				},
			}, "actions"),
		},
		{
			Name:        ToolCreateArtifact,
			Description: "Propose saving a structured artifact (an email document) from this response. The user must approve before it is saved.",
			InputSchema: objectSchema(map[string]interface{}{
				"kind":    stringProp("Artifact kind, e.g. email"),
				"title":   stringProp("Artifact title"),
				"content": stringProp("Artifact content"),
			}, "kind", "title"),
		},
		{
			Name:        ToolWebSearch,
			Description: "Search the web for current information.",
			InputSchema: objectSchema(map[string]interface{}{
				"query": stringProp("Search query"),
			}, "query"),
		},
		{
			Name:        ToolInvokeAgent,
			Description: "Invoke a specialized agent for a sub-task.",
			InputSchema: objectSchema(map[string]interface{}{
				"agent": stringProp("Agent name"),
				"task":  stringProp("Task description"),
			}, "agent", "task"),
		},
	}

	return defs
}
