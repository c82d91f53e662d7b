package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vocalis-ai/voxrelay/internal/session"
)

func TestAnthropicLLMStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req struct {
			Model    string              `json:"model"`
			Messages []map[string]string `json:"messages"`
			System   string              `json:"system,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.System != "system instructions" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", "hello from anthropic")
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	l := &AnthropicLLM{
		apiKey: "test-key",
		url:    server.URL,
		model:  "claude-3",
	}

	messages := []session.Message{
		{Role: "system", Content: "system instructions"},
		{Role: "user", Content: "hi"},
	}

	var out strings.Builder
	err := l.Stream(context.Background(), messages, func(text string) error {
		out.WriteString(text)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.String() != "hello from anthropic" {
		t.Errorf("expected 'hello from anthropic', got '%s'", out.String())
	}
}
