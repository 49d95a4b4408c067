// Package streaming drives one generation end to end: it opens a provider
// stream for a built prompt, maps provider-native parts onto the wire event
// union, forwards them as newline-delimited JSON, and runs the post-stream
// detectors before closing out.
package streaming

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

// EventWriter receives wire events in emission order.
type EventWriter interface {
	WriteEvent(ev chatModels.StreamEvent) error
}

// NDJSONWriter encodes each event as one JSON line and flushes immediately
// so the client sees deltas as they happen, not when a buffer fills.
type NDJSONWriter struct {
	enc     *json.Encoder
	flusher http.Flusher
}

// NewNDJSONWriter wraps w. If w implements http.Flusher each event is
// flushed as it is written.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	flusher, _ := w.(http.Flusher)
	return &NDJSONWriter{enc: json.NewEncoder(w), flusher: flusher}
}

func (n *NDJSONWriter) WriteEvent(ev chatModels.StreamEvent) error {
	if err := n.enc.Encode(ev); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	if n.flusher != nil {
		n.flusher.Flush()
	}
	return nil
}
