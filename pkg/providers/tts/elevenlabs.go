package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/vocalis-ai/voxrelay/internal/session"
)

// ElevenLabsTTS streams synthesis from ElevenLabs' chunked HTTP endpoint —
// the canonical default TTS vendor. Unlike LokutorTTS's persistent
// websocket, each call opens its own HTTP request; Abort cancels whichever
// request is currently in flight.
type ElevenLabsTTS struct {
	apiKey string
	url    string
	model  string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewElevenLabsTTS(apiKey string) *ElevenLabsTTS {
	return &ElevenLabsTTS{
		apiKey: apiKey,
		url:    "https://api.elevenlabs.io/v1/text-to-speech",
		model:  "eleven_turbo_v2_5",
	}
}

func (t *ElevenLabsTTS) StreamSynthesize(ctx context.Context, text string, voiceID string, lang session.Language, onChunk func([]byte) error) error {
	if voiceID == "" {
		return fmt.Errorf("elevenlabs: voice id is required")
	}

	reqCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		if t.cancel != nil {
			t.cancel = nil
		}
		t.mu.Unlock()
		cancel()
	}()

	payload := map[string]interface{}{
		"text":     text,
		"model_id": t.model,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := t.url + "/" + voiceID + "/stream"
	req, err := http.NewRequestWithContext(reqCtx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", t.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elevenlabs tts error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if cbErr := onChunk(chunk); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Abort cancels the request backing any in-flight StreamSynthesize call.
func (t *ElevenLabsTTS) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	return nil
}

func (t *ElevenLabsTTS) Name() string {
	return "elevenlabs"
}
