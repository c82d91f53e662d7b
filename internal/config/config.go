// Package config loads voxrelay's configuration from the process
// environment (optionally seeded by a .env file) at explicit startup
// construction time. Nothing here is read via package-level globals or
// init() — every credential and tuning parameter flows through a
// constructor argument, avoiding the module-load-time key capture bug this
// system is explicitly designed not to repeat.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every tunable the gateway needs at startup.
type Config struct {
	Port string

	STTProvider string
	LLMProvider string
	TTSProvider string

	SarvamAPIKey     string
	OpenAIAPIKey     string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string

	GroqAPIKey       string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	DeepgramAPIKey   string
	AssemblyAIAPIKey string
	LokutorAPIKey    string

	SessionIdleTimeoutSeconds int
	LogLevel                  string
	EchoSuppression           bool
}

// Load builds a Config from the current process environment. getenv is
// injected so tests can supply a fake environment instead of mutating the
// real one.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{
		Port:             firstNonEmpty(getenv("PORT"), "8000"),
		STTProvider:      firstNonEmpty(getenv("STT_PROVIDER"), "sarvam"),
		LLMProvider:      firstNonEmpty(getenv("LLM_PROVIDER"), "openai"),
		TTSProvider:      firstNonEmpty(getenv("TTS_PROVIDER"), "elevenlabs"),
		SarvamAPIKey:     getenv("SARVAM_API_KEY"),
		OpenAIAPIKey:     getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:  getenv("ELEVENLABS_VOICE_ID"),
		GroqAPIKey:       getenv("GROQ_API_KEY"),
		AnthropicAPIKey:  getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:     getenv("GOOGLE_API_KEY"),
		DeepgramAPIKey:   getenv("DEEPGRAM_API_KEY"),
		AssemblyAIAPIKey: getenv("ASSEMBLYAI_API_KEY"),
		LokutorAPIKey:    getenv("LOKUTOR_API_KEY"),
		LogLevel:         firstNonEmpty(getenv("LOG_LEVEL"), "info"),
	}

	idleSeconds := 60
	if v := getenv("SESSION_IDLE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT_SECONDS: %w", err)
		}
		idleSeconds = n
	}
	cfg.SessionIdleTimeoutSeconds = idleSeconds

	cfg.EchoSuppression = getenv("ECHO_SUPPRESSION") == "true"

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.STTProvider {
	case "sarvam":
		if c.SarvamAPIKey == "" {
			return fmt.Errorf("SARVAM_API_KEY must be set for STT_PROVIDER=sarvam")
		}
	case "groq":
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY must be set for STT_PROVIDER=groq")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set for STT_PROVIDER=openai")
		}
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY must be set for STT_PROVIDER=deepgram")
		}
	case "assemblyai":
		if c.AssemblyAIAPIKey == "" {
			return fmt.Errorf("ASSEMBLYAI_API_KEY must be set for STT_PROVIDER=assemblyai")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER: %s", c.STTProvider)
	}

	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set for LLM_PROVIDER=openai")
		}
	case "groq":
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY must be set for LLM_PROVIDER=groq")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY must be set for LLM_PROVIDER=anthropic")
		}
	case "google":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY must be set for LLM_PROVIDER=google")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER: %s", c.LLMProvider)
	}

	switch c.TTSProvider {
	case "elevenlabs":
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY must be set for TTS_PROVIDER=elevenlabs")
		}
		if c.ElevenLabsVoice == "" {
			return fmt.Errorf("ELEVENLABS_VOICE_ID must be set for TTS_PROVIDER=elevenlabs")
		}
	case "lokutor":
		if c.LokutorAPIKey == "" {
			return fmt.Errorf("LOKUTOR_API_KEY must be set for TTS_PROVIDER=lokutor")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER: %s", c.TTSProvider)
	}

	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
