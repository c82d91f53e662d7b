// Command gateway runs voxrelay's WebSocket relay: it accepts browser and
// micbridge connections at /ws, wires the configured STT/LLM/TTS vendors per
// connection, and serves a minimal static shell for the browser collaborator.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vocalis-ai/voxrelay/internal/config"
	"github.com/vocalis-ai/voxrelay/internal/gateway"
	"github.com/vocalis-ai/voxrelay/internal/logging"
	"github.com/vocalis-ai/voxrelay/internal/session"
	llmProvider "github.com/vocalis-ai/voxrelay/pkg/providers/llm"
	sttProvider "github.com/vocalis-ai/voxrelay/pkg/providers/stt"
	ttsProvider "github.com/vocalis-ai/voxrelay/pkg/providers/tts"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	factory := gateway.ProviderFactory{
		NewSTT: func() session.STTProvider { return buildSTT(cfg) },
		NewLLM: func() session.LLMProvider { return buildLLM(cfg) },
		NewTTS: func() session.TTSProvider { return buildTTS(cfg) },
	}

	opts := session.Options{
		VoiceID:          cfg.ElevenLabsVoice,
		SilenceTurnEndMs: 0,
		IdleTimeout:      time.Duration(cfg.SessionIdleTimeoutSeconds) * time.Second,
		EchoSuppression:  cfg.EchoSuppression,
	}

	gw := gateway.New(factory, opts, logger, "web/static")

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: gw.Handler(),
	}

	go func() {
		logger.Info("gateway listening", "addr", server.Addr, "stt", cfg.STTProvider, "llm", cfg.LLMProvider, "tts", cfg.TTSProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down", "reason", "signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func buildSTT(cfg *config.Config) session.STTProvider {
	switch cfg.STTProvider {
	case "openai":
		return sttProvider.NewOpenAISTT(cfg.OpenAIAPIKey, "whisper-1")
	case "groq":
		return sttProvider.NewGroqSTT(cfg.GroqAPIKey, "whisper-large-v3-turbo")
	case "deepgram":
		return sttProvider.NewDeepgramSTT(cfg.DeepgramAPIKey)
	case "assemblyai":
		return sttProvider.NewAssemblyAISTT(cfg.AssemblyAIAPIKey)
	case "sarvam":
		fallthrough
	default:
		return sttProvider.NewSarvamSTT(cfg.SarvamAPIKey)
	}
}

func buildLLM(cfg *config.Config) session.LLMProvider {
	switch cfg.LLMProvider {
	case "groq":
		return llmProvider.NewGroqLLM(cfg.GroqAPIKey, "llama-3.3-70b-versatile")
	case "anthropic":
		return llmProvider.NewAnthropicLLM(cfg.AnthropicAPIKey, "claude-3-5-sonnet-20241022")
	case "google":
		return llmProvider.NewGoogleLLM(cfg.GoogleAPIKey, "gemini-1.5-flash")
	case "openai":
		fallthrough
	default:
		return llmProvider.NewOpenAILLM(cfg.OpenAIAPIKey, "gpt-4o")
	}
}

func buildTTS(cfg *config.Config) session.TTSProvider {
	switch cfg.TTSProvider {
	case "lokutor":
		return ttsProvider.NewLokutorTTS(cfg.LokutorAPIKey)
	case "elevenlabs":
		fallthrough
	default:
		return ttsProvider.NewElevenLabsTTS(cfg.ElevenLabsAPIKey)
	}
}
