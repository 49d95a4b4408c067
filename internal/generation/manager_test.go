package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
)

// fakeMessageRepo records appended messages in memory.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []chatModels.Message
	failWith error
}

func (r *fakeMessageRepo) AppendMessage(ctx context.Context, msg *chatModels.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListMessages(ctx context.Context, conversationID string) ([]chatModels.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chatModels.Message, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// fakeConversationRepo records summary updates.
type fakeConversationRepo struct {
	mu       sync.Mutex
	previews map[string]string
}

func (r *fakeConversationRepo) CreateConversation(ctx context.Context, conv *chatModels.Conversation) error {
	return nil
}

func (r *fakeConversationRepo) GetConversation(ctx context.Context, conversationID, userID string) (*chatModels.Conversation, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeConversationRepo) ListConversationsByBrand(ctx context.Context, brandID, userID string) ([]chatModels.Conversation, error) {
	return nil, nil
}

func (r *fakeConversationRepo) UpdateConversationSummary(ctx context.Context, conversationID string, preview string, lastMessageAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.previews == nil {
		r.previews = make(map[string]string)
	}
	r.previews[conversationID] = preview
	return nil
}

func (r *fakeConversationRepo) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	return nil
}

// streamScript writes NDJSON events and optionally blocks until the client
// goes away, simulating a long generation.
func streamScript(t *testing.T, events []chatModels.StreamEvent, blockAfter bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprintf(w, `{"type":%q,"status":%q,"content":%q,"error":%q}`+"\n",
				ev.Type, ev.Status, ev.Content, ev.Error)
			flusher.Flush()
		}
		if blockAfter {
			// Drain the body so the server starts its background read;
			// without it the client's disconnect is never observed and
			// r.Context() is never canceled.
			io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}
	}))
}

func newTestManager(t *testing.T, endpoint string, msgs *fakeMessageRepo, convs *fakeConversationRepo) *Manager {
	t.Helper()
	m := NewManager(Config{
		Endpoint:       endpoint,
		NotifyInterval: time.Millisecond,
	}, msgs, convs, slog.Default())
	t.Cleanup(m.Close)
	return m
}

func startAndWait(t *testing.T, m *Manager, conversationID, title string) Outcome {
	t.Helper()
	done := make(chan Outcome, 1)
	m.Start(StartParams{
		ConversationID: conversationID,
		Title:          title,
		Request:        &domainChat.ChatRequest{ConversationID: conversationID},
		OnComplete:     func(out Outcome) { done <- out },
	})
	select {
	case out := <-done:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not complete")
		return Outcome{}
	}
}

func TestSuccessfulGeneration(t *testing.T) {
	server := streamScript(t, []chatModels.StreamEvent{
		chatModels.NewStatusEvent(chatModels.StatusAnalyzing),
		chatModels.NewTextEvent("Hello "),
		chatModels.NewTextEvent("world"),
		chatModels.NewDoneEvent(&chatModels.GenerationUsage{OutputTokens: 2}),
	}, false)
	defer server.Close()

	msgs := &fakeMessageRepo{}
	convs := &fakeConversationRepo{}
	m := newTestManager(t, server.URL, msgs, convs)

	out := startAndWait(t, m, "conv-1", "Welcome email")
	if out.Err != nil || out.Stopped {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if out.Text != "Hello world" {
		t.Errorf("accumulated text = %q, want %q", out.Text, "Hello world")
	}

	if msgs.count() != 1 {
		t.Fatalf("persisted messages = %d, want 1", msgs.count())
	}
	if convs.previews["conv-1"] != "Hello world" {
		t.Errorf("conversation preview = %q", convs.previews["conv-1"])
	}

	notifications := m.Notifications()
	if len(notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifications))
	}
	if !notifications[0].Success || notifications[0].Title != "Welcome email" {
		t.Errorf("notification = %+v", notifications[0])
	}
}

func TestClientRoleBuffersWithoutPersisting(t *testing.T) {
	server := streamScript(t, []chatModels.StreamEvent{
		chatModels.NewTextEvent("Hello "),
		chatModels.NewTextEvent("world"),
		chatModels.NewDoneEvent(&chatModels.GenerationUsage{OutputTokens: 2}),
	}, false)
	defer server.Close()

	// Nil repositories: the endpoint owns persistence, the manager only
	// tracks state and buffers the terminal payload.
	m := NewManager(Config{
		Endpoint:       server.URL,
		NotifyInterval: time.Millisecond,
	}, nil, nil, slog.Default())
	t.Cleanup(m.Close)

	out := startAndWait(t, m, "conv-client", "Welcome email")
	if out.Err != nil || out.Stopped {
		t.Fatalf("outcome = %+v, want success", out)
	}

	update := m.ConsumePendingUpdate("conv-client")
	if update == nil {
		t.Fatal("expected a pending update")
	}
	if update.Content != "Hello world" {
		t.Errorf("pending content = %q, want %q", update.Content, "Hello world")
	}
	if update.MessageID != "" {
		t.Errorf("pending message id = %q, want empty without a local write", update.MessageID)
	}
}

func TestAtMostOneInFlight(t *testing.T) {
	var requests int32
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		// See streamScript: drain the body or the disconnect is never seen.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, &fakeMessageRepo{}, &fakeConversationRepo{})

	params := StartParams{
		ConversationID: "conv-dup",
		Request:        &domainChat.ChatRequest{ConversationID: "conv-dup"},
	}
	m.Start(params)
	m.Start(params) // duplicate: must be ignored

	// Give the first session time to issue its request.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := requests
		mu.Unlock()
		if n >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if requests != 1 {
		t.Errorf("requests issued = %d, want 1", requests)
	}
	m.Stop("conv-dup")
}

func TestExactlyOncePendingUpdate(t *testing.T) {
	server := streamScript(t, []chatModels.StreamEvent{
		chatModels.NewTextEvent("result"),
		chatModels.NewDoneEvent(nil),
	}, false)
	defer server.Close()

	m := newTestManager(t, server.URL, &fakeMessageRepo{}, &fakeConversationRepo{})
	startAndWait(t, m, "conv-2", "t")

	first := m.ConsumePendingUpdate("conv-2")
	if first == nil || first.Content != "result" {
		t.Fatalf("first consume = %+v, want the terminal payload", first)
	}
	if second := m.ConsumePendingUpdate("conv-2"); second != nil {
		t.Errorf("second consume = %+v, want nil", second)
	}
	// Entry is terminal and drained: it must be gone.
	if _, ok := m.Snapshot("conv-2"); ok {
		t.Error("registry entry survived consumption of its pending update")
	}
}

func TestStopIsNotAnError(t *testing.T) {
	server := streamScript(t, []chatModels.StreamEvent{
		chatModels.NewTextEvent("partial "),
	}, true)
	defer server.Close()

	m := newTestManager(t, server.URL, &fakeMessageRepo{}, &fakeConversationRepo{})

	done := make(chan Outcome, 1)
	m.Start(StartParams{
		ConversationID: "conv-3",
		Request:        &domainChat.ChatRequest{ConversationID: "conv-3"},
		OnComplete:     func(out Outcome) { done <- out },
	})

	// Wait for the partial delta to land before stopping.
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, ok := m.Snapshot("conv-3")
		if ok && snap.Text != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("never observed partial text")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Stop("conv-3")
	m.Stop("conv-3") // idempotent

	var out Outcome
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback never fired")
	}

	if !out.Stopped {
		t.Errorf("outcome = %+v, want stopped", out)
	}
	if out.Err != nil {
		t.Errorf("stop produced an error: %v", out.Err)
	}
	if n := m.Notifications(); len(n) != 0 {
		t.Errorf("stop queued notifications: %+v", n)
	}
	if update := m.ConsumePendingUpdate("conv-3"); update != nil {
		t.Errorf("stop left a pending update: %+v", update)
	}
}

func TestStreamErrorFailsGeneration(t *testing.T) {
	server := streamScript(t, []chatModels.StreamEvent{
		chatModels.NewTextEvent("partial"),
		chatModels.NewErrorEvent("provider blew up"),
	}, false)
	defer server.Close()

	m := newTestManager(t, server.URL, &fakeMessageRepo{}, &fakeConversationRepo{})
	out := startAndWait(t, m, "conv-4", "t")

	if out.Err == nil {
		t.Fatal("expected failed outcome")
	}
	notifications := m.Notifications()
	if len(notifications) != 1 || notifications[0].Success {
		t.Errorf("notifications = %+v, want one failure", notifications)
	}
	if update := m.ConsumePendingUpdate("conv-4"); update != nil {
		t.Errorf("failed generation left a pending update: %+v", update)
	}
}

func TestPersistFailureIsGenerationFailure(t *testing.T) {
	server := streamScript(t, []chatModels.StreamEvent{
		chatModels.NewTextEvent("content"),
		chatModels.NewDoneEvent(nil),
	}, false)
	defer server.Close()

	msgs := &fakeMessageRepo{failWith: errors.New("db down")}
	m := newTestManager(t, server.URL, msgs, &fakeConversationRepo{})
	out := startAndWait(t, m, "conv-5", "t")

	if out.Err == nil {
		t.Fatal("expected failure when persistence fails")
	}
	notifications := m.Notifications()
	if len(notifications) != 1 || notifications[0].Success {
		t.Errorf("notifications = %+v, want one failure", notifications)
	}
}

func TestConcurrentGenerationsAreIndependent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domainChat.ChatRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		flusher := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, `{"type":"text","content":%q}`+"\n", req.ConversationID+" ")
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"type":"done"}`)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, &fakeMessageRepo{}, &fakeConversationRepo{})

	var wg sync.WaitGroup
	outcomes := make(map[string]Outcome)
	var mu sync.Mutex
	for _, id := range []string{"conv-a", "conv-b"} {
		id := id
		wg.Add(1)
		m.Start(StartParams{
			ConversationID: id,
			Request:        &domainChat.ChatRequest{ConversationID: id},
			OnComplete: func(out Outcome) {
				mu.Lock()
				outcomes[id] = out
				mu.Unlock()
				wg.Done()
			},
		})
	}

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		t.Fatal("generations did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	for id, out := range outcomes {
		want := id + " " + id + " " + id + " "
		if out.Text != want {
			t.Errorf("%s accumulated %q, want %q", id, out.Text, want)
		}
	}
}

func TestAdoptedGenerationConverges(t *testing.T) {
	m := newTestManager(t, "http://unused.invalid", &fakeMessageRepo{}, &fakeConversationRepo{})

	done := make(chan Outcome, 1)
	canceled := false
	ok := m.Adopt(AdoptParams{
		ConversationID: "conv-adopt",
		Title:          "Adopted",
		Cancel:         func() { canceled = true },
		OnComplete:     func(out Outcome) { done <- out },
	})
	if !ok {
		t.Fatal("Adopt refused a fresh conversation id")
	}
	if m.Adopt(AdoptParams{ConversationID: "conv-adopt"}) {
		t.Error("Adopt accepted a duplicate conversation id")
	}

	ev := chatModels.NewTextEvent("streamed elsewhere")
	m.ApplyEvent("conv-adopt", &ev)

	snap, ok := m.Snapshot("conv-adopt")
	if !ok || snap.Text != "streamed elsewhere" {
		t.Errorf("snapshot = %+v", snap)
	}

	m.CompleteAdopted("conv-adopt", Outcome{Text: "streamed elsewhere"})

	select {
	case out := <-done:
		if out.Err != nil || out.Stopped {
			t.Errorf("outcome = %+v, want success", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("adopted completion never fired")
	}

	if update := m.ConsumePendingUpdate("conv-adopt"); update == nil || update.Content != "streamed elsewhere" {
		t.Errorf("pending update = %+v", update)
	}
	if canceled {
		t.Error("cancel invoked without Stop")
	}
}

func TestCompletionCallbackFiresExactlyOnce(t *testing.T) {
	m := newTestManager(t, "http://unused.invalid", &fakeMessageRepo{}, &fakeConversationRepo{})

	var calls int32
	var mu sync.Mutex
	m.Adopt(AdoptParams{
		ConversationID: "conv-once",
		OnComplete: func(Outcome) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})

	m.CompleteAdopted("conv-once", Outcome{Text: "a"})
	m.CompleteAdopted("conv-once", Outcome{Err: errors.New("late")})

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("completion callback fired %d times, want 1", calls)
	}
}

func TestSweepRemovesDrainedEntries(t *testing.T) {
	m := newTestManager(t, "http://unused.invalid", &fakeMessageRepo{}, &fakeConversationRepo{})

	m.Adopt(AdoptParams{ConversationID: "conv-gc"})
	m.CompleteAdopted("conv-gc", Outcome{Text: "done"})

	// Undrained: pending update still buffered, must survive any sweep.
	m.collect(time.Now().Add(time.Hour))
	if _, ok := m.Snapshot("conv-gc"); !ok {
		t.Fatal("sweep removed an entry with an unconsumed pending update")
	}

	m.ConsumePendingUpdate("conv-gc")
	// Consuming the update after terminal completion already deletes the
	// entry, so the sweep has nothing left to do for it.
	if _, ok := m.Snapshot("conv-gc"); ok {
		t.Error("drained terminal entry still registered")
	}

	// A stopped generation has no pending update and is swept on age.
	m.Adopt(AdoptParams{ConversationID: "conv-gc2"})
	m.CompleteAdopted("conv-gc2", Outcome{Stopped: true})
	m.collect(time.Now().Add(time.Hour))
	if _, ok := m.Snapshot("conv-gc2"); ok {
		t.Error("sweep kept an aged stopped entry")
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
