package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vocalis-ai/voxrelay/internal/session"
)

func TestElevenLabsTTS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.Contains(r.URL.Path, "/voice-1/stream") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{1, 2, 3, 4})
	}))
	defer server.Close()

	tts := &ElevenLabsTTS{
		apiKey: "test-key",
		url:    server.URL,
		model:  "eleven_turbo_v2_5",
	}

	var audio []byte
	err := tts.StreamSynthesize(context.Background(), "hello", "voice-1", session.LanguageEn, func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(audio) != 4 {
		t.Errorf("expected 4 bytes, got %d", len(audio))
	}

	if tts.Name() != "elevenlabs" {
		t.Errorf("expected elevenlabs, got %s", tts.Name())
	}

	if err := tts.Abort(); err != nil {
		t.Errorf("unexpected error from Abort: %v", err)
	}
}
