package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// scanBufferSize bounds a single stream event line. Text deltas are small;
// detector events carrying full artifacts can be large.
const scanBufferSize = 1 << 20

// runSession drives one manager-owned generation: it posts the request,
// decodes the NDJSON response line by line, folds each event into the
// registry entry, and hands the terminal outcome to the shared completion
// routine.
func (m *Manager) runSession(ctx context.Context, params StartParams) {
	out := m.consumeStream(ctx, params)
	m.complete(params.ConversationID, out)
}

func (m *Manager) consumeStream(ctx context.Context, params StartParams) Outcome {
	body, err := json.Marshal(params.Request)
	if err != nil {
		return Outcome{Err: fmt.Errorf("encode chat request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{Err: fmt.Errorf("build stream request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.AuthToken)
	}

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return m.stoppedOutcome(params.ConversationID)
		}
		return Outcome{Err: fmt.Errorf("open generation stream: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Outcome{Err: fmt.Errorf("generation stream returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))}
	}

	var usage *chatModels.GenerationUsage

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufferSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		ev, err := chatModels.DecodeEvent(line)
		if err != nil {
			var unknown *chatModels.ErrUnknownEventType
			if errors.As(err, &unknown) {
				// Newer server, older client: skip, don't fail.
				m.logger.Debug("skipping unknown stream event",
					"conversation_id", params.ConversationID, "type", unknown.Type)
				continue
			}
			return m.failedOutcome(params.ConversationID, fmt.Errorf("malformed stream event: %w", err))
		}

		switch ev.Type {
		case chatModels.EventError:
			return m.failedOutcome(params.ConversationID, errors.New(ev.Error))
		case chatModels.EventDone:
			usage = ev.Usage
			return m.successOutcome(params.ConversationID, usage)
		default:
			m.ApplyEvent(params.ConversationID, ev)
		}
	}

	if ctx.Err() != nil {
		return m.stoppedOutcome(params.ConversationID)
	}
	if err := scanner.Err(); err != nil {
		return m.failedOutcome(params.ConversationID, fmt.Errorf("read generation stream: %w", err))
	}
	return m.failedOutcome(params.ConversationID, errors.New("generation stream ended without a terminal event"))
}

func (m *Manager) successOutcome(conversationID string, usage *chatModels.GenerationUsage) Outcome {
	out := m.accumulated(conversationID)
	out.Usage = usage
	return out
}

func (m *Manager) failedOutcome(conversationID string, err error) Outcome {
	out := m.accumulated(conversationID)
	out.Err = err
	return out
}

func (m *Manager) stoppedOutcome(conversationID string) Outcome {
	out := m.accumulated(conversationID)
	out.Stopped = true
	return out
}

// accumulated reads back what the decode loop folded into the entry, so
// every terminal path reports the content that was actually applied.
func (m *Manager) accumulated(conversationID string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[conversationID]
	if !ok {
		return Outcome{}
	}
	products := make([]chatModels.ProductLink, len(e.products))
	copy(products, e.products)
	return Outcome{
		Text:      string(e.text),
		Reasoning: string(e.reasoning),
		Products:  products,
	}
}
