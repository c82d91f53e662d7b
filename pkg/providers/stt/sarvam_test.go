package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vocalis-ai/voxrelay/internal/session"
)

func TestSarvamSTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-subscription-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		resp := struct {
			Transcript string `json:"transcript"`
		}{
			Transcript: "sarvam transcription",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &SarvamSTT{
		apiKey:     "test-key",
		url:        server.URL,
		model:      "saarika:v2",
		sampleRate: 16000,
	}

	result, err := s.Transcribe(context.Background(), []byte{0, 0, 0, 0}, session.LanguageHi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != "sarvam transcription" {
		t.Errorf("expected 'sarvam transcription', got '%s'", result)
	}

	if s.Name() != "sarvam-stt" {
		t.Errorf("expected sarvam-stt, got %s", s.Name())
	}
}
