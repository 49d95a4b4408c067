package generation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	chatRepos "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/repositories/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

// Config tunes one Manager instance.
type Config struct {
	// Endpoint is the full URL of the streaming chat endpoint.
	Endpoint string

	// AuthToken, when set, is sent as a bearer token on stream requests.
	AuthToken string

	// HTTPClient defaults to a client with no overall timeout: generations
	// stream for minutes and are bounded by cancellation, not a deadline.
	HTTPClient *http.Client

	// OnChange is invoked when tracked state changes: batched for content
	// deltas, immediately for lifecycle transitions.
	OnChange func()

	// NotifyInterval is the batching window for content-delta change
	// signals. Defaults to 50ms.
	NotifyInterval time.Duration

	// SweepInterval and RetentionPeriod control garbage collection of
	// finished entries. Default 10s and 30s.
	SweepInterval   time.Duration
	RetentionPeriod time.Duration

	// MaxNotifications bounds the completion-notification queue; the
	// oldest entries are dropped first. Defaults to 50.
	MaxNotifications int
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.NotifyInterval <= 0 {
		cfg.NotifyInterval = 50 * time.Millisecond
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.RetentionPeriod <= 0 {
		cfg.RetentionPeriod = 30 * time.Second
	}
	if cfg.MaxNotifications <= 0 {
		cfg.MaxNotifications = 50
	}
	return cfg
}

// StartParams describes a generation the manager drives itself.
type StartParams struct {
	ConversationID string
	Title          string
	BrandID        string

	// Request is the chat request posted to the streaming endpoint.
	Request *domainChat.ChatRequest

	// OnComplete fires exactly once when the generation reaches a terminal
	// state, whatever that state is.
	OnComplete func(Outcome)
}

// AdoptParams describes an in-flight generation whose stream is consumed by
// the caller. The manager takes ownership for cancellation, bookkeeping and
// completion without re-issuing the request.
type AdoptParams struct {
	ConversationID string
	Title          string
	BrandID        string

	// Cancel stops the caller's stream consumption; invoked by Stop.
	Cancel func()

	OnComplete func(Outcome)
}

// Manager is the single process-wide generation registry. Construct one at
// startup, inject it where needed, and Close it at shutdown.
//
// A manager plays one of two roles. A server-side manager is built with
// repositories and owns durability: it persists the assistant message when a
// generation completes. A client-side manager is built with nil repositories
// because the endpoint it streams from already owns durability; it only
// tracks live state and buffers the terminal payload.
type Manager struct {
	cfg           Config
	messages      chatRepos.MessageRepository
	conversations chatRepos.ConversationRepository
	logger        *slog.Logger
	notify        *notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
	queue   []CompletionNotification
}

// NewManager creates the registry and starts its garbage-collection sweep.
// The sweep stops when the manager is closed. Pass nil repositories for a
// client-side manager; passing them to a client would write every message a
// second time, since the server endpoint persists it at completion.
func NewManager(cfg Config, messages chatRepos.MessageRepository, conversations chatRepos.ConversationRepository, logger *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:           cfg,
		messages:      messages,
		conversations: conversations,
		logger:        logger,
		notify:        newNotifier(cfg.NotifyInterval, cfg.OnChange),
		ctx:           ctx,
		cancel:        cancel,
		entries:       make(map[string]*entry),
	}

	m.wg.Add(1)
	go m.sweep()

	return m
}

// Start begins a generation for a conversation. At most one generation per
// conversation id may be in flight: a duplicate call is logged and ignored.
func (m *Manager) Start(params StartParams) {
	m.mu.Lock()
	if _, exists := m.entries[params.ConversationID]; exists {
		m.mu.Unlock()
		m.logger.Warn("generation already in flight, ignoring start",
			"conversation_id", params.ConversationID)
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	e := &entry{
		conversationID: params.ConversationID,
		title:          params.Title,
		brandID:        params.BrandID,
		phase:          PhaseRunning,
		startedAt:      time.Now(),
		cancel:         cancel,
		onComplete:     params.OnComplete,
	}
	m.entries[params.ConversationID] = e
	m.mu.Unlock()

	m.notify.flush()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runSession(ctx, params)
	}()
}

// Adopt takes ownership of a generation whose stream the caller consumes
// itself. Returns false if a generation is already registered for the
// conversation id, in which case the caller must not proceed.
func (m *Manager) Adopt(params AdoptParams) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[params.ConversationID]; exists {
		return false
	}
	cancel := params.Cancel
	if cancel == nil {
		cancel = func() {}
	}
	m.entries[params.ConversationID] = &entry{
		conversationID: params.ConversationID,
		title:          params.Title,
		brandID:        params.BrandID,
		phase:          PhaseRunning,
		startedAt:      time.Now(),
		cancel:         cancel,
		onComplete:     params.OnComplete,
	}
	return true
}

// ApplyEvent records a decoded stream event against an adopted generation,
// keeping the registry's accumulated state in step with what the caller is
// rendering live. Terminal outcomes go through CompleteAdopted instead.
func (m *Manager) ApplyEvent(conversationID string, ev *chatModels.StreamEvent) {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	if !ok || e.phase.Terminal() {
		m.mu.Unlock()
		return
	}
	m.applyLocked(e, ev)
	m.mu.Unlock()
	m.signalFor(ev)
}

// CompleteAdopted finishes an adopted generation. Runs the same completion
// routine as a manager-driven generation: persistence, pending update,
// notification, callback.
func (m *Manager) CompleteAdopted(conversationID string, out Outcome) {
	m.complete(conversationID, out)
}

// Stop cancels a generation. A user-initiated stop is not a failure: it
// produces no failure notification and no pending update. Idempotent.
func (m *Manager) Stop(conversationID string) {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	if !ok || e.phase.Terminal() {
		m.mu.Unlock()
		return
	}
	cancel := e.cancel
	m.mu.Unlock()

	cancel()
}

// ConsumePendingUpdate returns and clears the buffered terminal payload.
// The first call after a successful completion gets the payload; every
// later call gets nil. Once the entry is terminal and drained it is
// removed from the registry.
func (m *Manager) ConsumePendingUpdate(conversationID string) *PendingUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[conversationID]
	if !ok {
		return nil
	}
	update := e.pending
	e.pending = nil
	if e.phase.Terminal() {
		delete(m.entries, conversationID)
	}
	return update
}

// Snapshot returns a copy of the tracked state for a conversation.
func (m *Manager) Snapshot(conversationID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[conversationID]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Active reports whether a generation is currently running for the
// conversation.
func (m *Manager) Active(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[conversationID]
	return ok && !e.phase.Terminal()
}

// Notifications returns a copy of the queued completion notifications,
// oldest first.
func (m *Manager) Notifications() []CompletionNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionNotification, len(m.queue))
	copy(out, m.queue)
	return out
}

// Dismiss removes the oldest notification for a conversation.
func (m *Manager) Dismiss(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.queue {
		if n.ConversationID == conversationID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// DismissAll clears the notification queue.
func (m *Manager) DismissAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
}

// Close cancels every in-flight generation, stops the sweep, and waits for
// session goroutines to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	m.notify.close()
}

// complete is the single terminal routine both entry paths converge on. It
// runs at most once per registered generation. A successful model output
// whose persistence fails is reclassified as a failed generation: without a
// durable record it did not succeed.
func (m *Manager) complete(conversationID string, out Outcome) {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	if !ok || e.completed {
		m.mu.Unlock()
		return
	}
	e.completed = true
	title, brandID := e.title, e.brandID
	onComplete := e.onComplete
	m.mu.Unlock()

	var update *PendingUpdate
	if out.Err == nil && !out.Stopped {
		if m.messages != nil {
			update, out = m.persist(conversationID, out)
		} else {
			// Client role: the server wrote the durable row, so the
			// pending update carries content only, no message id.
			update = &PendingUpdate{
				Content:   out.Text,
				Reasoning: out.Reasoning,
				Products:  out.Products,
				Usage:     out.Usage,
			}
		}
	}

	now := time.Now()
	m.mu.Lock()
	switch {
	case out.Stopped:
		e.phase = PhaseStopped
	case out.Err != nil:
		e.phase = PhaseFailed
		e.err = out.Err.Error()
	default:
		e.phase = PhaseCompleted
		e.pending = update
	}
	e.completedAt = now

	// A stop is neutral: no notification either way.
	if !out.Stopped {
		m.queue = append(m.queue, CompletionNotification{
			ConversationID: conversationID,
			Title:          title,
			BrandID:        brandID,
			Success:        out.Err == nil,
			Error:          e.err,
			CompletedAt:    now,
		})
		if len(m.queue) > m.cfg.MaxNotifications {
			m.queue = m.queue[len(m.queue)-m.cfg.MaxNotifications:]
		}
	}
	m.mu.Unlock()

	m.notify.flush()

	if onComplete != nil {
		onComplete(out)
	}
}

// persist writes the final message and the conversation summary. Runs on a
// background context so a canceled request cannot strand a finished result.
func (m *Manager) persist(conversationID string, out Outcome) (*PendingUpdate, Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	msg := &chatModels.Message{
		ConversationID: conversationID,
		Role:           chatModels.RoleAssistant,
		Content:        out.Text,
	}
	if out.Reasoning != "" {
		reasoning := out.Reasoning
		msg.Reasoning = &reasoning
	}
	if out.Usage != nil {
		msg.Metadata = map[string]interface{}{
			"model":         out.Usage.Model,
			"input_tokens":  out.Usage.InputTokens,
			"output_tokens": out.Usage.OutputTokens,
			"stop_reason":   out.Usage.StopReason,
		}
	}

	if err := m.messages.AppendMessage(ctx, msg); err != nil {
		m.logger.Error("failed to persist generated message",
			"conversation_id", conversationID, "error", err)
		return nil, Outcome{Err: fmt.Errorf("persist message: %w", err)}
	}
	if err := m.conversations.UpdateConversationSummary(ctx, conversationID, preview(out.Text), time.Now()); err != nil {
		m.logger.Error("failed to update conversation summary",
			"conversation_id", conversationID, "error", err)
		return nil, Outcome{Err: fmt.Errorf("update conversation summary: %w", err)}
	}

	return &PendingUpdate{
		MessageID: msg.ID,
		Content:   out.Text,
		Reasoning: out.Reasoning,
		Products:  out.Products,
		Usage:     out.Usage,
	}, out
}

// applyLocked folds one stream event into an entry. Caller holds m.mu.
func (m *Manager) applyLocked(e *entry, ev *chatModels.StreamEvent) {
	e.events++
	switch ev.Type {
	case chatModels.EventText:
		e.text = append(e.text, ev.Content...)
	case chatModels.EventThinking:
		e.reasoning = append(e.reasoning, ev.Content...)
	case chatModels.EventStatus:
		e.status = ev.Status
	case chatModels.EventProducts:
		e.products = append(e.products, ev.Products...)
	}
}

// signalFor picks the notification tier for an event: content deltas are
// batched, everything else flushes immediately.
func (m *Manager) signalFor(ev *chatModels.StreamEvent) {
	switch ev.Type {
	case chatModels.EventText, chatModels.EventThinking:
		m.notify.signal()
	default:
		m.notify.flush()
	}
}

// sweep periodically deletes entries that are terminal, drained, and past
// the retention window, bounding memory growth from abandoned generations.
func (m *Manager) sweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.collect(time.Now())
		}
	}
}

func (m *Manager) collect(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.phase.Terminal() && e.pending == nil && now.Sub(e.completedAt) > m.cfg.RetentionPeriod {
			delete(m.entries, id)
		}
	}
}

// preview produces the denormalized conversation summary text.
func preview(text string) string {
	const max = 140
	if len(text) <= max {
		return text
	}
	return text[:max]
}
