package a2a

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// StreamEvent is one item of a message/stream response.
type StreamEvent struct {
	// Exactly one of these is set.
	Task           *Task                    `json:"task,omitempty"`
	StatusUpdate   *TaskStatusUpdateEvent   `json:"statusUpdate,omitempty"`
	ArtifactUpdate *TaskArtifactUpdateEvent `json:"artifactUpdate,omitempty"`

	// Err is set if the stream or the remote call failed.
	Err error `json:"-"`
}

// SSEWriter writes JSON-RPC responses as Server-Sent Events. It is safe for
// concurrent use.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	id      any
}

// NewSSEWriter wraps w for the request with the given JSON-RPC id. If w does
// not implement http.Flusher, events may be buffered.
func NewSSEWriter(w http.ResponseWriter, id any) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f, id: id}
}

// Init sets the SSE response headers and flushes them to the client.
func (sw *SSEWriter) Init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	sw.w.WriteHeader(http.StatusOK)
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// WriteEvent writes ev as the result of a JSON-RPC response frame.
func (sw *SSEWriter) WriteEvent(ev StreamEvent) error {
	result, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	return sw.write(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: sw.id, Result: result})
}

// WriteError writes a JSON-RPC error frame.
func (sw *SSEWriter) WriteError(code int, message string) error {
	return sw.write(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      sw.id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}

func (sw *SSEWriter) write(resp JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("sse: marshal frame: %w", err)
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// ReadEvents reads SSE frames from body and delivers the decoded events on
// the returned channel. The channel is closed when the body is exhausted, a
// read error occurs, or ctx is done. The body is closed when reading
// finishes.
//
// Lines starting with ":" are comments. Multiple "data:" lines within one
// event are joined with newlines. A frame that does not decode, or that
// carries a JSON-RPC error, yields an event with Err set; reading continues.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var data strings.Builder

		flush := func() bool {
			if data.Len() == 0 {
				return true
			}
			ev := decodeFrame(data.String())
			data.Reset()
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- StreamEvent{Err: fmt.Errorf("sse: read: %w", err)}:
			case <-ctx.Done():
			}
			return
		}
		flush()
	}()
	return ch
}

func decodeFrame(raw string) StreamEvent {
	var resp JSONRPCResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return StreamEvent{Err: fmt.Errorf("sse: unmarshal frame: %w", err)}
	}
	if resp.Error != nil {
		return StreamEvent{Err: rpcError(MethodStreamMessage, resp.Error)}
	}
	var ev StreamEvent
	if err := json.Unmarshal(resp.Result, &ev); err != nil {
		return StreamEvent{Err: fmt.Errorf("sse: unmarshal event: %w", err)}
	}
	return ev
}
