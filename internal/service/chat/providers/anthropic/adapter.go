package anthropic

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

// convertMessages converts prompt messages to Anthropic SDK format.
// Attachments become base64 image blocks on the message that carries them.
func convertMessages(messages []domainChat.PromptMessage) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.Attachments))

		for _, att := range msg.Attachments {
			if !strings.HasPrefix(att.MediaType, "image/") {
				continue
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(att.MediaType, att.Data))
		}
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		if len(blocks) == 0 {
			return nil, fmt.Errorf("message %d: no content", i)
		}

		switch msg.Role {
		case "user":
			result = append(result, anthropic.NewUserMessage(blocks...))
		case "assistant":
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}
	}

	return result, nil
}

// convertTools converts tool definitions to Anthropic SDK format.
func convertTools(defs []domainChat.ToolDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	result := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tool := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: def.InputSchema["properties"],
			},
		}
		if required, ok := def.InputSchema["required"].([]string); ok {
			tool.InputSchema.Required = required
		}
		result = append(result, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return result
}
