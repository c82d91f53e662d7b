package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vocalis-ai/voxrelay/internal/logging"
)

// Timeouts from spec §5.
const (
	STTTimeout           = 15 * time.Second
	LLMFirstTokenTimeout = 10 * time.Second
	LLMTotalTimeout      = 30 * time.Second
	TTSSentenceTimeout   = 20 * time.Second
)

// sentenceQueueCapacity is the bounded queue's fixed capacity from spec.
const sentenceQueueCapacity = 8

// joinGrace is the spec §5 bound on joining a turn's subtasks after
// cancellation is observed; exceeding it forces the session closed rather
// than blocking teardown on a wedged subtask.
const joinGrace = 200 * time.Millisecond

// fallbackUtterance is spoken when STT fails twice — the LLM subtask is
// skipped entirely, and this turn is never recorded in memory.
const fallbackUtterance = "Sorry, I didn't catch that."

// Sink is the narrow, send-only capability a TurnOrchestrator is given
// instead of a back-pointer to the owning Session — resolving the
// Session/TurnState cyclic reference the spec's design notes call out.
type Sink interface {
	SendTranscript(text string)
	SendTTSText(text string, hasAudio bool)
	SendAudioChunk(chunk []byte)
	SendAudioStart()
	SendAudioEnd()
	SendError(message string)
	SendInterrupt()
	// RequestTransition asks the owning Session's StateMachine to move to
	// `to`, emitting the resulting status broadcast. Illegal requests are
	// silently ignored by the StateMachine, exactly as spec requires.
	RequestTransition(to State)
	// ForceClose tears the session down immediately, abandoning whatever
	// subtask is still running rather than waiting on it further — the
	// spec §5 fallback when a cancelled turn's subtasks don't terminate
	// within their join grace.
	ForceClose()
}

// TurnOrchestrator runs one turn's STT → LLM → TTS pipeline, bridging the
// LLM producer and TTS consumer with a bounded sentence queue, and
// supporting idempotent cross-stage cancellation on barge-in.
type TurnOrchestrator struct {
	stt TTProvider
	llm LLMProvider
	tts TTSProvider

	memory  *ConversationMemory
	voiceID string
	lang    Language
	logger  logging.Logger
}

// TTProvider is an alias kept local to this file purely so the struct field
// above reads naturally; it is the same STTProvider interface.
type TTProvider = STTProvider

// NewTurnOrchestrator wires the three vendor adapters plus the session's
// shared memory. Panics are not used for nil providers — callers validate
// at construction (see New).
func NewTurnOrchestrator(stt STTProvider, llm LLMProvider, tts TTSProvider, memory *ConversationMemory, voiceID string, lang Language, logger logging.Logger) *TurnOrchestrator {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &TurnOrchestrator{stt: stt, llm: llm, tts: tts, memory: memory, voiceID: voiceID, lang: lang, logger: logger}
}

// RunTurn executes one full turn against voicedAudio. ctx is the per-turn
// cancellation context; the caller (Session) cancels it on barge-in. RunTurn
// never panics. It normally returns only after every subtask it started has
// returned; if a cancelled turn's subtasks are still running after
// joinGrace, it calls sink.ForceClose and returns without waiting for them.
func (to *TurnOrchestrator) RunTurn(ctx context.Context, sink Sink, voicedAudio []byte) {
	lat := latencyBreakdown{userStopped: time.Now()}

	sttCtx, cancelSTT := context.WithTimeout(ctx, STTTimeout)
	lat.sttStart = time.Now()
	transcript, err := to.transcribeWithRetry(sttCtx, voicedAudio)
	lat.sttEnd = time.Now()
	cancelSTT()

	if ctx.Err() != nil {
		// Cancelled (barge-in) while STT was in flight.
		sink.SendInterrupt()
		sink.RequestTransition(StateUserSpeaking)
		return
	}

	if err != nil {
		to.logger.Warn("stt failed twice, speaking fallback", "error", err)
		to.runFallback(ctx, sink)
		return
	}

	if strings.TrimSpace(transcript) == "" {
		sink.RequestTransition(StateUserSpeaking)
		return
	}

	sink.SendTranscript(transcript)

	messages := append(to.memory.BuildLLMMessages(), Message{Role: "user", Content: transcript})

	committed, assistantText := to.runLLMAndTTS(ctx, sink, messages, &lat)

	if !committed {
		sink.SendInterrupt()
		sink.RequestTransition(StateUserSpeaking)
		return
	}

	to.memory.CommitTurn(transcript, assistantText)
	to.logLatency(lat)
	sink.RequestTransition(StateUserSpeaking)
}

// latencyBreakdown holds the per-stage timestamps for one turn, logged as a
// single structured summary line at commit time — not exposed over the wire
// or persisted, just an observability aid within the "no metrics pipeline"
// non-goal.
type latencyBreakdown struct {
	userStopped      time.Time
	sttStart, sttEnd time.Time
	llmStart, llmEnd time.Time
	ttsFirstChunk    time.Time
}

func (to *TurnOrchestrator) logLatency(lat latencyBreakdown) {
	fields := []interface{}{
		"stt_ms", lat.sttEnd.Sub(lat.sttStart).Milliseconds(),
		"user_to_stt_ms", lat.sttEnd.Sub(lat.userStopped).Milliseconds(),
	}
	if !lat.llmStart.IsZero() && !lat.llmEnd.IsZero() {
		fields = append(fields, "llm_ms", lat.llmEnd.Sub(lat.llmStart).Milliseconds())
		fields = append(fields, "user_to_llm_ms", lat.llmEnd.Sub(lat.userStopped).Milliseconds())
	}
	if !lat.ttsFirstChunk.IsZero() {
		fields = append(fields, "user_to_tts_first_byte_ms", lat.ttsFirstChunk.Sub(lat.userStopped).Milliseconds())
	}
	to.logger.Info("turn latency", fields...)
}

// runFallback speaks fallbackUtterance through TTS only (no LLM, no memory
// commit) — the spec's second-STT-failure behavior.
func (to *TurnOrchestrator) runFallback(ctx context.Context, sink Sink) {
	sink.SendTTSText(fallbackUtterance, true)

	queue := make(chan string, 1)
	queue <- fallbackUtterance
	close(queue)

	lat := &latencyBreakdown{}
	to.runTTSConsumer(ctx, sink, queue, lat)
	sink.RequestTransition(StateUserSpeaking)
}

// transcribeWithRetry performs the STT call with exactly one silent retry
// on error, per spec §4.3/§4.6.
func (to *TurnOrchestrator) transcribeWithRetry(ctx context.Context, pcm []byte) (string, error) {
	text, err := to.stt.Transcribe(ctx, pcm, to.lang)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return to.stt.Transcribe(ctx, pcm, to.lang)
}

// runLLMAndTTS runs the LLM producer and TTS consumer concurrently, bridged
// by the bounded sentence queue, and reports whether the turn committed
// (completed without cancellation) plus the assembled assistant text.
func (to *TurnOrchestrator) runLLMAndTTS(ctx context.Context, sink Sink, messages []Message, lat *latencyBreakdown) (committed bool, assistantText string) {
	sink.RequestTransition(StateAIProcessing)

	queue := make(chan string, sentenceQueueCapacity)
	var pending strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)

	var llmErr, ttsErr error

	go func() {
		defer wg.Done()
		lat.llmStart = time.Now()
		llmErr = to.runLLMProducer(ctx, messages, queue, &pending)
		lat.llmEnd = time.Now()
	}()

	go func() {
		defer wg.Done()
		ttsErr = to.runTTSConsumer(ctx, sink, queue, lat)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Cancellation (barge-in or forced timeout): the TTS vendor's
		// HTTP/WebSocket read may be blocked independently of ctx
		// cancellation propagating through its client library, so force
		// it to stop rather than rely on cancellation alone.
		if err := to.tts.Abort(); err != nil {
			to.logger.Warn("tts abort failed", "error", err)
		}
		select {
		case <-done:
		case <-time.After(joinGrace):
			to.logger.Error("turn subtasks did not terminate within join grace, forcing session closed")
			sink.ForceClose()
			return false, ""
		}
	}

	if ctx.Err() != nil {
		return false, ""
	}

	if llmErr != nil {
		sink.SendError("LLM error: " + llmErr.Error())
		return false, ""
	}
	if ttsErr != nil {
		sink.SendError("TTS error: " + ttsErr.Error())
		return false, ""
	}

	sink.SendTTSText(pending.String(), true)
	return true, pending.String()
}

// runLLMProducer streams the LLM completion, feeds tokens into a
// SentenceSplitter, and puts every completed sentence onto queue (blocking
// when full, honoring ctx cancellation). On stream end it flushes any
// trailing buffered text as a final sentence, then closes queue — the
// channel close is the producer's sentinel.
func (to *TurnOrchestrator) runLLMProducer(ctx context.Context, messages []Message, queue chan<- string, pending *strings.Builder) error {
	defer close(queue)

	splitter := NewSentenceSplitter()

	totalCtx, cancelTotal := context.WithTimeout(ctx, LLMTotalTimeout)
	defer cancelTotal()

	firstCtx, cancelFirst := context.WithCancel(totalCtx)
	gotFirstToken := false
	firstTokenTimer := time.AfterFunc(LLMFirstTokenTimeout, cancelFirst)
	defer firstTokenTimer.Stop()

	err := to.llm.Stream(firstCtx, messages, func(text string) error {
		if !gotFirstToken {
			gotFirstToken = true
			firstTokenTimer.Stop()
		}
		pending.WriteString(text)
		for _, sentence := range splitter.Feed(text) {
			select {
			case queue <- sentence:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if tail, ok := splitter.Flush(); ok {
		select {
		case queue <- tail:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// runTTSConsumer drains queue, synthesizing each sentence and forwarding
// audio chunks to the sink. The first chunk of the first sentence requests
// the AI_SPEAKING transition and an audio_start message.
func (to *TurnOrchestrator) runTTSConsumer(ctx context.Context, sink Sink, queue <-chan string, lat *latencyBreakdown) error {
	firstChunk := true

	for sentence := range queue {
		sentCtx, cancel := context.WithTimeout(ctx, TTSSentenceTimeout)
		err := to.tts.StreamSynthesize(sentCtx, sentence, to.voiceID, to.lang, func(chunk []byte) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if firstChunk {
				firstChunk = false
				lat.ttsFirstChunk = time.Now()
				sink.RequestTransition(StateAISpeaking)
				sink.SendAudioStart()
			}
			sink.SendAudioChunk(chunk)
			return nil
		})
		cancel()

		if err != nil {
			return err
		}
	}

	if !firstChunk {
		sink.SendAudioEnd()
	}

	return nil
}
