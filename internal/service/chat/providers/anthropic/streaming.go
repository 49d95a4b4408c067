package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

const defaultMaxTokens = 4096

const thinkingBudgetTokens = 2048

// StreamGenerate opens a streaming request against the Anthropic API.
// Returns a channel that emits ProviderEvents as deltas arrive.
func (p *Provider) StreamGenerate(ctx context.Context, req *domainChat.GenerateRequest) (<-chan domainChat.ProviderEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by Anthropic provider", req.Model)
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.System != "" {
		apiParams.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: req.System,
			},
		}
	}
	if req.Temperature != nil {
		apiParams.Temperature = anthropic.Float(*req.Temperature)
	}
	if tools := convertTools(req.Tools); tools != nil {
		apiParams.Tools = tools
	}
	if req.Thinking {
		apiParams.Thinking = anthropic.ThinkingConfigParamOfEnabled(thinkingBudgetTokens)
	}

	eventChan := make(chan domainChat.ProviderEvent, 10) // Buffered to prevent blocking

	go func() {
		defer close(eventChan)

		stream := p.client.Messages.NewStreaming(ctx, apiParams)

		// Accumulator for final message metadata
		message := anthropic.Message{}
		decoder := newStreamDecoder()

		for stream.Next() {
			event := stream.Current()

			if err := message.Accumulate(event); err != nil {
				eventChan <- domainChat.ProviderEvent{
					Error: fmt.Errorf("failed to accumulate message: %w", err),
				}
				return
			}

			for _, providerEvent := range decoder.decode(event) {
				select {
				case <-ctx.Done():
					eventChan <- domainChat.ProviderEvent{Error: ctx.Err()}
					return
				case eventChan <- providerEvent:
				}
			}
		}

		if err := stream.Err(); err != nil {
			eventChan <- domainChat.ProviderEvent{
				Error: fmt.Errorf("anthropic streaming error: %w", err),
			}
			return
		}

		eventChan <- domainChat.ProviderEvent{
			Metadata: &domainChat.StreamMetadata{
				Model:        string(message.Model),
				InputTokens:  int(message.Usage.InputTokens),
				OutputTokens: int(message.Usage.OutputTokens),
				StopReason:   string(message.StopReason),
			},
		}
	}()

	return eventChan, nil
}

// streamDecoder maps Anthropic stream events onto provider events. Tool-use
// blocks arrive as a start frame plus partial JSON deltas, so the decoder
// keeps per-index state and emits the assembled ToolCall when the block
// stops.
type streamDecoder struct {
	blockTypes map[int]string
	toolIDs    map[int]string
	toolNames  map[int]string
	toolJSON   map[int]string
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{
		blockTypes: make(map[int]string),
		toolIDs:    make(map[int]string),
		toolNames:  make(map[int]string),
		toolJSON:   make(map[int]string),
	}
}

func (d *streamDecoder) decode(event anthropic.MessageStreamEventUnion) []domainChat.ProviderEvent {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		index := int(e.Index)
		blockType := string(e.ContentBlock.Type)
		d.blockTypes[index] = blockType

		switch blockType {
		case "thinking":
			return []domainChat.ProviderEvent{
				{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinkingStart}},
			}
		case "tool_use":
			d.toolIDs[index] = e.ContentBlock.ID
			d.toolNames[index] = e.ContentBlock.Name
			d.toolJSON[index] = ""
		}
		return nil

	case anthropic.ContentBlockDeltaEvent:
		index := int(e.Index)
		switch e.Delta.Type {
		case "text_delta":
			return []domainChat.ProviderEvent{
				{Delta: &domainChat.Delta{Kind: domainChat.DeltaText, Text: e.Delta.Text}},
			}
		case "thinking_delta":
			return []domainChat.ProviderEvent{
				{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinking, Text: e.Delta.Thinking}},
			}
		case "input_json_delta":
			d.toolJSON[index] += e.Delta.PartialJSON
		}
		return nil

	case anthropic.ContentBlockStopEvent:
		index := int(e.Index)
		switch d.blockTypes[index] {
		case "thinking":
			return []domainChat.ProviderEvent{
				{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinkingEnd}},
			}
		case "tool_use":
			return d.finishToolCall(index)
		}
		return nil

	// MessageStart, MessageDelta and MessageStop carry nothing to forward;
	// final metadata is built from the accumulated message.
	default:
		return nil
	}
}

func (d *streamDecoder) finishToolCall(index int) []domainChat.ProviderEvent {
	input := make(map[string]interface{})
	if raw := d.toolJSON[index]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return []domainChat.ProviderEvent{
				{Error: fmt.Errorf("malformed tool input for %s: %w", d.toolNames[index], err)},
			}
		}
	}
	return []domainChat.ProviderEvent{
		{ToolCall: &domainChat.ToolCall{
			ID:    d.toolIDs[index],
			Name:  d.toolNames[index],
			Input: input,
		}},
	}
}
