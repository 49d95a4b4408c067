package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/detect"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/prompt"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/tools"
)

// Options carries per-stream settings that are not part of the prompt.
type Options struct {
	Model     string
	MaxTokens int
	Thinking  bool

	// UserMessages and BrandDomain feed the product link extractor so it
	// can tell recommendations apart from links the user pasted and the
	// brand's own pages.
	UserMessages []string
	BrandDomain  string
}

// Result is the accumulated outcome of a finished stream, returned to the
// caller alongside everything already written to the wire.
type Result struct {
	Text       string
	Reasoning  string
	Products   []chatModels.ProductLink
	Suggestion *chatModels.ArtifactSuggestion
	Usage      *chatModels.GenerationUsage
}

// Handler orchestrates a single generation per call. Handlers are stateless
// and safe for concurrent use; all per-request state lives on the stack.
type Handler struct {
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
}

func NewHandler(dispatcher *tools.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// Handle opens a provider stream for the built prompt and forwards its
// parts to w as wire events, in order, one at a time. Text and reasoning
// are accumulated for the post-stream detectors; on the terminal provider
// part the detectors run and their suggestions are emitted before the
// closing done event.
//
// Any failure while consuming the stream, including a panic, is converted
// into a terminal error event; nothing follows an error event.
func (h *Handler) Handle(ctx context.Context, provider domainChat.ModelProvider, built prompt.BuiltPrompt, toolSet []domainChat.ToolDefinition, opts Options, w EventWriter) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("stream handler panic", "panic", r, "model", opts.Model)
			_ = w.WriteEvent(chatModels.NewErrorEvent("generation failed unexpectedly"))
			result = nil
			err = fmt.Errorf("stream handler panic: %v", r)
		}
	}()

	events, err := provider.StreamGenerate(ctx, &domainChat.GenerateRequest{
		System:    built.System,
		Messages:  built.Messages,
		Model:     opts.Model,
		Tools:     toolSet,
		MaxTokens: opts.MaxTokens,
		Thinking:  opts.Thinking,
	})
	if err != nil {
		_ = w.WriteEvent(chatModels.NewErrorEvent(err.Error()))
		return nil, fmt.Errorf("open provider stream: %w", err)
	}

	if err := w.WriteEvent(chatModels.NewStatusEvent(chatModels.StatusAnalyzing)); err != nil {
		return nil, err
	}

	var text, reasoning strings.Builder
	var usage *chatModels.GenerationUsage
	writing := false

consume:
	for {
		// Cancellation wins over a ready event so a stopped generation
		// never keeps forwarding deltas.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				break consume
			}
			switch {
			case ev.Error != nil:
				_ = w.WriteEvent(chatModels.NewErrorEvent(ev.Error.Error()))
				return nil, fmt.Errorf("provider stream: %w", ev.Error)

			case ev.Delta != nil:
				if err := h.forwardDelta(ev.Delta, &text, &reasoning, &writing, w); err != nil {
					return nil, err
				}

			case ev.ToolCall != nil:
				if err := h.forwardToolCall(ev.ToolCall, w); err != nil {
					return nil, err
				}

			case ev.Metadata != nil:
				usage = &chatModels.GenerationUsage{
					Model:        ev.Metadata.Model,
					InputTokens:  ev.Metadata.InputTokens,
					OutputTokens: ev.Metadata.OutputTokens,
					StopReason:   ev.Metadata.StopReason,
				}
			}
		}
	}

	if err := w.WriteEvent(chatModels.NewStatusEvent(chatModels.StatusFinalizing)); err != nil {
		return nil, err
	}

	result = &Result{
		Text:      text.String(),
		Reasoning: reasoning.String(),
		Usage:     usage,
	}

	// Detectors are enrichment: they never fail the stream, they only add
	// suggestions when they find something.
	result.Products = detect.ExtractProductLinks(result.Text, result.Reasoning, opts.UserMessages, opts.BrandDomain)
	if len(result.Products) > 0 {
		if err := w.WriteEvent(chatModels.StreamEvent{Type: chatModels.EventProducts, Products: result.Products}); err != nil {
			return nil, err
		}
	}
	if result.Suggestion = detect.DetectArtifact(result.Text); result.Suggestion != nil {
		if err := w.WriteEvent(chatModels.StreamEvent{Type: chatModels.EventArtifactSuggestion, Suggestion: result.Suggestion}); err != nil {
			return nil, err
		}
	}

	if err := w.WriteEvent(chatModels.NewDoneEvent(usage)); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Handler) forwardDelta(delta *domainChat.Delta, text, reasoning *strings.Builder, writing *bool, w EventWriter) error {
	switch delta.Kind {
	case domainChat.DeltaText:
		if !*writing {
			if err := w.WriteEvent(chatModels.NewStatusEvent(chatModels.StatusWriting)); err != nil {
				return err
			}
			*writing = true
		}
		text.WriteString(delta.Text)
		return w.WriteEvent(chatModels.NewTextEvent(delta.Text))

	case domainChat.DeltaThinkingStart:
		if err := w.WriteEvent(chatModels.NewStatusEvent(chatModels.StatusThinking)); err != nil {
			return err
		}
		return w.WriteEvent(chatModels.StreamEvent{Type: chatModels.EventThinkingStart})

	case domainChat.DeltaThinking:
		reasoning.WriteString(delta.Text)
		return w.WriteEvent(chatModels.NewThinkingEvent(delta.Text))

	case domainChat.DeltaThinkingEnd:
		return w.WriteEvent(chatModels.StreamEvent{Type: chatModels.EventThinkingEnd})
	}
	return nil
}

// forwardToolCall brackets the dispatch with tool_use start/end events. An
// unknown tool is logged and skipped; it must not kill the stream.
func (h *Handler) forwardToolCall(call *domainChat.ToolCall, w EventWriter) error {
	if err := w.WriteEvent(chatModels.NewToolUseEvent(call.Name, chatModels.ToolPhaseStart)); err != nil {
		return err
	}
	ev, err := h.dispatcher.Dispatch(call)
	if err != nil {
		h.logger.Warn("tool dispatch failed", "tool", call.Name, "error", err)
	} else if err := w.WriteEvent(ev); err != nil {
		return err
	}
	return w.WriteEvent(chatModels.NewToolUseEvent(call.Name, chatModels.ToolPhaseEnd))
}
