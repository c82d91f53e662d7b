package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vocalis-ai/voxrelay/internal/session"
)

func TestOpenAILLMStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, chunk := range []string{"hello ", "from ", "openai"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	l := &OpenAILLM{
		apiKey: "test-key",
		url:    server.URL,
		model:  "gpt-4o",
	}

	messages := []session.Message{
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

	if out.String() != "hello from openai" {
		t.Errorf("expected 'hello from openai', got '%s'", out.String())
	}

	if l.Name() != "openai-llm" {
		t.Errorf("expected openai-llm, got %s", l.Name())
	}
}
