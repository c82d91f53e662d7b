package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vocalis-ai/voxrelay/internal/session"
)

type OpenAILLM struct {
	apiKey string
	url    string
	model  string
}

func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{
		apiKey: apiKey,
		url:    "https://api.openai.com/v1/chat/completions",
		model:  model,
	}
}

func (l *OpenAILLM) Stream(ctx context.Context, messages []session.Message, onToken func(text string) error) error {
	payload := map[string]interface{}{
		"model":      l.model,
		"messages":   messages,
		"stream":     true,
		"max_tokens": session.MaxResponseTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("openai llm error (status %d): %v", resp.StatusCode, errResp)
	}

	return readSSE(resp.Body, func(data string) (bool, error) {
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return false, err
		}
		if len(chunk.Choices) == 0 {
			return false, nil
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			if err := onToken(text); err != nil {
				return false, err
			}
		}
		return false, nil
	})
}

func (l *OpenAILLM) Name() string {
	return "openai-llm"
}
