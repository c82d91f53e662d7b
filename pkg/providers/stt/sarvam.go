package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/vocalis-ai/voxrelay/internal/session"
	"github.com/vocalis-ai/voxrelay/pkg/audio"
)

// SarvamSTT talks to Sarvam AI's speech-to-text API, the canonical default
// STT vendor — strong on Indic languages, which matters for the Devanagari
// sentence-boundary handling the rest of the pipeline carries.
type SarvamSTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

func NewSarvamSTT(apiKey string) *SarvamSTT {
	return &SarvamSTT{
		apiKey:     apiKey,
		url:        "https://api.sarvam.ai/speech-to-text",
		model:      "saarika:v2",
		sampleRate: 16000,
	}
}

func (s *SarvamSTT) Name() string {
	return "sarvam-stt"
}

func (s *SarvamSTT) Transcribe(ctx context.Context, audioPCM []byte, lang session.Language) (string, error) {
	wavData := audio.NewWavBuffer(audioPCM, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}
	if lang != "" {
		if err := writer.WriteField("language_code", string(lang)+"-IN"); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("api-subscription-key", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sarvam stt error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Transcript, nil
}
