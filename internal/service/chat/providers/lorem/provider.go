// Package lorem is a mock model provider that streams lorem ipsum text.
// Used for development and tests without real API keys.
package lorem

import (
	"context"
	"fmt"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

// Provider streams generated filler text with model-dependent pacing.
type Provider struct {
	generator *loremgen.Lorem
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider() *Provider {
	return &Provider{
		generator: loremgen.New(),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow", "lorem-test"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// getStreamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second
// - lorem-fast: 30 words/second
// - default: 10 words/second
func getStreamDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond
	}
	if strings.Contains(model, "fast") {
		return 33 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// StreamGenerate streams a lorem ipsum response. If thinking is requested,
// a bracketed thinking span is emitted before the text.
func (p *Provider) StreamGenerate(ctx context.Context, req *domainChat.GenerateRequest) (<-chan domainChat.ProviderEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by lorem provider", req.Model)
	}

	maxWords := req.MaxTokens
	if maxWords <= 0 || maxWords > 200 {
		maxWords = 200
	}
	delay := getStreamDelay(req.Model)

	eventChan := make(chan domainChat.ProviderEvent, 10)

	go func() {
		defer close(eventChan)

		outputTokens := 0

		if req.Thinking {
			sent, err := p.streamThinkingSpan(ctx, eventChan, delay)
			if err != nil {
				send(ctx, eventChan, domainChat.ProviderEvent{Error: err})
				return
			}
			outputTokens += sent
		}

		sent, err := p.streamWords(ctx, eventChan, domainChat.DeltaText, maxWords, delay)
		if err != nil {
			send(ctx, eventChan, domainChat.ProviderEvent{Error: err})
			return
		}
		outputTokens += sent

		send(ctx, eventChan, domainChat.ProviderEvent{
			Metadata: &domainChat.StreamMetadata{
				Model:        req.Model,
				InputTokens:  estimateTokens(req.Messages),
				OutputTokens: outputTokens,
				StopReason:   "end_turn",
			},
		})
	}()

	return eventChan, nil
}

func (p *Provider) streamThinkingSpan(ctx context.Context, eventChan chan<- domainChat.ProviderEvent, delay time.Duration) (int, error) {
	if !send(ctx, eventChan, domainChat.ProviderEvent{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinkingStart}}) {
		return 0, ctx.Err()
	}

	sent, err := p.streamWords(ctx, eventChan, domainChat.DeltaThinking, 10, delay)
	if err != nil {
		return sent, err
	}

	if !send(ctx, eventChan, domainChat.ProviderEvent{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinkingEnd}}) {
		return sent, ctx.Err()
	}
	return sent, nil
}

func (p *Provider) streamWords(ctx context.Context, eventChan chan<- domainChat.ProviderEvent, kind domainChat.DeltaKind, maxWords int, delay time.Duration) (int, error) {
	var sent int
	for sent < maxWords {
		sentence := p.generator.Sentence(8, 14)
		for _, word := range strings.Fields(sentence) {
			ok := send(ctx, eventChan, domainChat.ProviderEvent{
				Delta: &domainChat.Delta{Kind: kind, Text: word + " "},
			})
			if !ok {
				return sent, ctx.Err()
			}
			sent++
			if sent >= maxWords {
				break
			}

			time.Sleep(delay)
		}
	}
	return sent, nil
}

// send delivers one event unless the context is canceled first. A consumer
// that stops reading with a full channel must not strand the producer
// goroutine on a blocked send.
func send(ctx context.Context, eventChan chan<- domainChat.ProviderEvent, ev domainChat.ProviderEvent) bool {
	select {
	case eventChan <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// estimateTokens approximates input size by word count.
func estimateTokens(messages []domainChat.PromptMessage) int {
	total := 0
	for _, msg := range messages {
		total += len(strings.Fields(msg.Content))
	}
	return total
}
