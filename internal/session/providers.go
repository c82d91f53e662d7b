package session

import "context"

// Language is a BCP-47-ish language hint passed to STT/LLM/TTS vendors.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageHi Language = "hi"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

// Message is one entry in the LLM-facing conversation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// STTProvider transcribes a blob of raw PCM audio into text. Implementations
// make a single attempt per call (TurnOrchestrator performs the one retry)
// and must return "" (not an error) when the vendor reports no speech
// detected.
type STTProvider interface {
	Transcribe(ctx context.Context, pcm []byte, lang Language) (string, error)
	Name() string
}

// LLMToken is one chunk of a streaming completion; concatenating every
// token's Text in order reconstructs the full response.
type LLMToken struct {
	Text string
	Done bool
}

// LLMProvider opens a streaming chat completion. onToken is invoked for
// every token as it arrives; the call returns once the stream ends or ctx
// is cancelled, in which case the underlying HTTP stream must be closed
// promptly.
type LLMProvider interface {
	Stream(ctx context.Context, messages []Message, onToken func(text string) error) error
	Name() string
}

// TTSProvider synthesizes one sentence of text into a stream of opaque
// audio-chunk blobs (MP3 frames by default). Abort forces any in-flight
// synthesis to stop promptly — it's the provider-level half of the
// orchestrator's cancellation protocol, since an HTTP/WebSocket read may be
// blocked independently of ctx cancellation propagating through a
// third-party client library.
type TTSProvider interface {
	StreamSynthesize(ctx context.Context, text string, voiceID string, lang Language, onChunk func([]byte) error) error
	Abort() error
	Name() string
}
