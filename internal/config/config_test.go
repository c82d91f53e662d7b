package config

import "testing"

func fakeEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadDefaults(t *testing.T) {
	env := fakeEnv(map[string]string{
		"SARVAM_API_KEY":     "sarvam-key",
		"OPENAI_API_KEY":     "openai-key",
		"ELEVENLABS_API_KEY": "el-key",
		"ELEVENLABS_VOICE_ID": "voice-1",
	})

	cfg, err := Load(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.STTProvider != "sarvam" {
		t.Errorf("expected default STT provider sarvam, got %s", cfg.STTProvider)
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("expected default LLM provider openai, got %s", cfg.LLMProvider)
	}
	if cfg.TTSProvider != "elevenlabs" {
		t.Errorf("expected default TTS provider elevenlabs, got %s", cfg.TTSProvider)
	}
	if cfg.SessionIdleTimeoutSeconds != 60 {
		t.Errorf("expected default idle timeout 60, got %d", cfg.SessionIdleTimeoutSeconds)
	}
	if cfg.EchoSuppression {
		t.Error("expected echo suppression disabled by default")
	}
}

func TestLoadMissingRequiredKeyFails(t *testing.T) {
	env := fakeEnv(map[string]string{})
	if _, err := Load(env); err == nil {
		t.Fatal("expected error when SARVAM_API_KEY is missing for default STT provider")
	}
}

func TestLoadUnknownProviderFails(t *testing.T) {
	env := fakeEnv(map[string]string{
		"STT_PROVIDER":       "carrier-pigeon",
		"SARVAM_API_KEY":     "key",
		"OPENAI_API_KEY":     "key",
		"ELEVENLABS_API_KEY": "key",
		"ELEVENLABS_VOICE_ID": "voice",
	})
	if _, err := Load(env); err == nil {
		t.Fatal("expected error for unknown STT_PROVIDER")
	}
}

func TestLoadInvalidIdleTimeoutFails(t *testing.T) {
	env := fakeEnv(map[string]string{
		"SARVAM_API_KEY":               "key",
		"OPENAI_API_KEY":               "key",
		"ELEVENLABS_API_KEY":           "key",
		"ELEVENLABS_VOICE_ID":          "voice",
		"SESSION_IDLE_TIMEOUT_SECONDS": "not-a-number",
	})
	if _, err := Load(env); err == nil {
		t.Fatal("expected error for invalid SESSION_IDLE_TIMEOUT_SECONDS")
	}
}

func TestLoadSelectsGroqProviders(t *testing.T) {
	env := fakeEnv(map[string]string{
		"STT_PROVIDER":       "groq",
		"LLM_PROVIDER":       "groq",
		"GROQ_API_KEY":       "groq-key",
		"ELEVENLABS_API_KEY": "key",
		"ELEVENLABS_VOICE_ID": "voice",
	})
	cfg, err := Load(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.STTProvider != "groq" || cfg.LLMProvider != "groq" {
		t.Errorf("expected groq/groq, got %s/%s", cfg.STTProvider, cfg.LLMProvider)
	}
}
