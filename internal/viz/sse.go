package viz

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
)

// SSEHub broadcasts marker payloads to browser clients over Server-Sent
// Events. It implements Publisher, so the node can fan out to UDP and SSE
// sinks through the same interface.
type SSEHub struct {
	mu          sync.Mutex
	subscribers map[string]chan []byte
	closing     bool
}

// NewSSEHub returns an empty hub; attach it to an HTTP mux via Handler.
func NewSSEHub() *SSEHub {
	return &SSEHub{subscribers: make(map[string]chan []byte)}
}

// randomID generates a random channel ID (8 byte random hex encoded value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new client channel and returns its ID.
func (h *SSEHub) Subscribe() (string, chan []byte) {
	id := randomID()
	ch := make(chan []byte, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a client channel.
func (h *SSEHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Publish encodes the marker set and hands it to every connected client.
// Slow clients have the payload dropped rather than blocking the pipeline.
func (h *SSEHub) Publish(set *MarkerSet) error {
	payload, err := set.Encode()
	if err != nil {
		return fmt.Errorf("encode marker set: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return nil
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Close disconnects all clients.
func (h *SSEHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return nil
	}
	h.closing = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	return nil
}

// Handler serves the SSE endpoint. Each connected client receives every
// marker payload published while it is attached.
func (h *SSEHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		id, ch := h.Subscribe()
		defer h.Unsubscribe(id)

		// Initial ping establishes the stream.
		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-ch:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
