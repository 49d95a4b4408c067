package streaming

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/prompt"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/tools"
)

// scriptedProvider replays a fixed event script, mirroring how a provider
// adapter feeds the handler.
type scriptedProvider struct {
	script  []domainChat.ProviderEvent
	openErr error
}

func (p *scriptedProvider) StreamGenerate(ctx context.Context, req *domainChat.GenerateRequest) (<-chan domainChat.ProviderEvent, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	ch := make(chan domainChat.ProviderEvent)
	go func() {
		defer close(ch)
		for _, ev := range p.script {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *scriptedProvider) Name() string                { return "scripted" }
func (p *scriptedProvider) SupportsModel(m string) bool { return true }

// captureWriter records every event in order.
type captureWriter struct {
	events []chatModels.StreamEvent
}

func (c *captureWriter) WriteEvent(ev chatModels.StreamEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func textDelta(s string) domainChat.ProviderEvent {
	return domainChat.ProviderEvent{Delta: &domainChat.Delta{Kind: domainChat.DeltaText, Text: s}}
}

func thinkingDelta(s string) domainChat.ProviderEvent {
	return domainChat.ProviderEvent{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinking, Text: s}}
}

func metadata() domainChat.ProviderEvent {
	return domainChat.ProviderEvent{Metadata: &domainChat.StreamMetadata{
		Model: "test-model", InputTokens: 10, OutputTokens: 20, StopReason: "end_turn",
	}}
}

func newTestHandler() *Handler {
	return NewHandler(tools.NewDispatcher(slog.Default()), slog.Default())
}

func runHandler(t *testing.T, p *scriptedProvider, opts Options) (*Result, *captureWriter, error) {
	t.Helper()
	w := &captureWriter{}
	built := prompt.BuiltPrompt{
		System:   "system",
		Messages: []domainChat.PromptMessage{{Role: "user", Content: "hi"}},
	}
	res, err := newTestHandler().Handle(context.Background(), p, built, nil, opts, w)
	return res, w, err
}

func eventTypes(events []chatModels.StreamEvent) []chatModels.EventType {
	out := make([]chatModels.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestTextAccumulationAndOrder(t *testing.T) {
	p := &scriptedProvider{script: []domainChat.ProviderEvent{
		textDelta("Hello "),
		textDelta("world"),
		metadata(),
	}}

	res, w, err := runHandler(t, p, Options{Model: "test-model"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Text != "Hello world" {
		t.Errorf("accumulated text = %q, want %q", res.Text, "Hello world")
	}

	want := []chatModels.EventType{
		chatModels.EventStatus, // analyzing
		chatModels.EventStatus, // writing
		chatModels.EventText,
		chatModels.EventText,
		chatModels.EventStatus, // finalizing
		chatModels.EventDone,
	}
	got := eventTypes(w.events)
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	last := w.events[len(w.events)-1]
	if last.Usage == nil || last.Usage.OutputTokens != 20 {
		t.Errorf("done event usage = %+v", last.Usage)
	}
}

func TestThinkingSpanIsBracketed(t *testing.T) {
	p := &scriptedProvider{script: []domainChat.ProviderEvent{
		{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinkingStart}},
		thinkingDelta("considering tone"),
		{Delta: &domainChat.Delta{Kind: domainChat.DeltaThinkingEnd}},
		textDelta("Final copy"),
		metadata(),
	}}

	res, w, err := runHandler(t, p, Options{})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Reasoning != "considering tone" {
		t.Errorf("reasoning = %q", res.Reasoning)
	}

	var sawStart, sawEnd bool
	for _, ev := range w.events {
		switch ev.Type {
		case chatModels.EventThinkingStart:
			sawStart = true
		case chatModels.EventThinkingEnd:
			if !sawStart {
				t.Error("thinking_end before thinking_start")
			}
			sawEnd = true
		case chatModels.EventThinking:
			if !sawStart || sawEnd {
				t.Error("thinking delta outside its bracket")
			}
		}
	}
	if !sawStart || !sawEnd {
		t.Error("thinking span not bracketed")
	}
}

func TestToolCallDispatchedInline(t *testing.T) {
	p := &scriptedProvider{script: []domainChat.ProviderEvent{
		textDelta("Let me plan that. "),
		{ToolCall: &domainChat.ToolCall{
			Name:  tools.ToolCreateArtifact,
			Input: map[string]interface{}{"kind": "email", "title": "Draft", "content": "body"},
		}},
		metadata(),
	}}

	_, w, err := runHandler(t, p, Options{})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	var phases []string
	var sawPending bool
	for _, ev := range w.events {
		if ev.Type == chatModels.EventToolUse {
			phases = append(phases, ev.Status)
		}
		if ev.Type == chatModels.EventPendingArtifact {
			if len(phases) != 1 {
				t.Error("pending_artifact not between tool_use start and end")
			}
			sawPending = true
		}
	}
	if len(phases) != 2 || phases[0] != chatModels.ToolPhaseStart || phases[1] != chatModels.ToolPhaseEnd {
		t.Errorf("tool_use phases = %v", phases)
	}
	if !sawPending {
		t.Error("missing pending_artifact event")
	}
}

func TestUnknownToolDoesNotKillStream(t *testing.T) {
	p := &scriptedProvider{script: []domainChat.ProviderEvent{
		{ToolCall: &domainChat.ToolCall{Name: "bogus_tool"}},
		textDelta("continuing"),
		metadata(),
	}}

	res, w, err := runHandler(t, p, Options{})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Text != "continuing" {
		t.Errorf("text = %q", res.Text)
	}
	if last := w.events[len(w.events)-1]; last.Type != chatModels.EventDone {
		t.Errorf("last event = %q, want done", last.Type)
	}
}

func TestProviderErrorIsTerminal(t *testing.T) {
	p := &scriptedProvider{script: []domainChat.ProviderEvent{
		textDelta("partial"),
		{Error: errors.New("rate limited")},
	}}

	_, w, err := runHandler(t, p, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	last := w.events[len(w.events)-1]
	if last.Type != chatModels.EventError {
		t.Fatalf("last event = %q, want error", last.Type)
	}
	if !strings.Contains(last.Error, "rate limited") {
		t.Errorf("error message = %q", last.Error)
	}
}

func TestOpenFailureEmitsErrorEvent(t *testing.T) {
	p := &scriptedProvider{openErr: errors.New("no api key")}

	_, w, err := runHandler(t, p, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(w.events) != 1 || w.events[0].Type != chatModels.EventError {
		t.Errorf("events = %v, want single error event", eventTypes(w.events))
	}
}

func TestDetectorsRunAfterStream(t *testing.T) {
	email := "Subject: Big news\n\nHi there,\n\nCheck out https://shop.example.com/products/kettle today.\n\nUnsubscribe anytime."
	p := &scriptedProvider{script: []domainChat.ProviderEvent{
		textDelta(email),
		metadata(),
	}}

	res, w, err := runHandler(t, p, Options{})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(res.Products) != 1 {
		t.Errorf("products = %+v, want 1 link", res.Products)
	}
	if res.Suggestion == nil {
		t.Error("expected artifact suggestion for email-shaped text")
	}

	// Suggestions come after all text, before done.
	types := eventTypes(w.events)
	doneIdx := len(types) - 1
	if types[doneIdx] != chatModels.EventDone {
		t.Fatalf("last event = %q", types[doneIdx])
	}
	var sawProducts, sawSuggestion bool
	for _, typ := range types[:doneIdx] {
		if typ == chatModels.EventProducts {
			sawProducts = true
		}
		if typ == chatModels.EventArtifactSuggestion {
			sawSuggestion = true
		}
	}
	if !sawProducts || !sawSuggestion {
		t.Errorf("detector events missing from %v", types)
	}
}

func TestCancellationStopsConsumption(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{script: []domainChat.ProviderEvent{textDelta("never seen"), metadata()}}
	w := &captureWriter{}
	built := prompt.BuiltPrompt{System: "s", Messages: []domainChat.PromptMessage{{Role: "user", Content: "hi"}}}

	_, err := newTestHandler().Handle(ctx, p, built, nil, Options{}, w)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
