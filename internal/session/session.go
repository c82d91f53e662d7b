package session

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/vocalis-ai/voxrelay/internal/logging"
)

// DefaultIdleTimeout is the inactivity window after which a Session is
// force-closed, per spec §3/§5.
const DefaultIdleTimeout = 60 * time.Second

// Options configures a Session beyond its required provider set.
type Options struct {
	VoiceID          string
	Language         Language
	SilenceTurnEndMs int // 0 means use SilenceDetector's own default (700ms)
	IdleTimeout      time.Duration
	EchoSuppression  bool
}

// Session owns one /ws connection's lifecycle: the state machine, the
// silence/barge-in detector, the turn orchestrator, conversation memory, and
// (optionally) echo suppression. It implements Sink so the orchestrator can
// talk back to the client without holding a reference to Session itself.
type Session struct {
	id        string
	transport Transport
	logger    logging.Logger

	sm   *StateMachine
	vad  *SilenceDetector
	echo *EchoSuppressor
	mem  *ConversationMemory
	turn *TurnOrchestrator

	idleTimeout time.Duration

	mu           sync.Mutex
	voicedBuf    bytes.Buffer
	turnCancel   context.CancelFunc
	turnWG       sync.WaitGroup
	lastActivity time.Time
	closed       bool
	closeCh      chan struct{}
}

// New constructs a Session wired to the given vendor adapters and
// transport. It returns ErrNilProvider if stt/llm/tts/transport is nil.
func New(id string, stt STTProvider, llm LLMProvider, tts TTSProvider, transport Transport, logger logging.Logger, opts Options) (*Session, error) {
	if stt == nil || llm == nil || tts == nil || transport == nil {
		return nil, ErrNilProvider
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	idleTimeout := opts.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	voiceID := opts.VoiceID
	lang := opts.Language
	if lang == "" {
		lang = LanguageEn
	}

	s := &Session{
		id:           id,
		transport:    transport,
		logger:       logger,
		vad:          NewSilenceDetector(opts.SilenceTurnEndMs),
		echo:         NewEchoSuppressor(),
		mem:          NewConversationMemory(),
		idleTimeout:  idleTimeout,
		lastActivity: time.Now(),
		closeCh:      make(chan struct{}),
	}
	s.echo.SetEnabled(opts.EchoSuppression)
	s.sm = NewStateMachine(s.onStateEnter)
	s.turn = NewTurnOrchestrator(stt, llm, tts, s.mem, voiceID, lang, logger)

	// Spec §4.1: IDLE -> USER_SPEAKING fires on connection accept, not on
	// the first voiced frame — the SilenceDetector ignores frames while
	// IDLE (§4.2), so nothing else would ever drive this transition.
	s.sm.Transition(StateUserSpeaking)
	return s, nil
}

// ID returns the session's identifier (used in logs, not on the wire).
func (s *Session) ID() string { return s.id }

// Run starts the idle-timeout watchdog and blocks until the session closes
// or ctx is cancelled. The gateway should run this in its own goroutine
// alongside the websocket read loop.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.closeCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastActivity)
			s.mu.Unlock()
			if idle >= s.idleTimeout {
				s.sm.ForceTimeout()
				s.Close()
				return
			}
		}
	}
}

// Close cancels any in-flight turn, waits for it to finish, and marks the
// session closed. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	s.cancelCurrentTurn()
	s.turnWG.Wait()
}

// ForceClose tears the session down immediately without waiting on the
// in-flight turn goroutine — used when a turn's subtasks fail to terminate
// within their join grace (spec §5). Closing the transport unblocks
// whatever read/write the wedged subtask is stuck on; the goroutine is
// otherwise abandoned rather than allowed to block teardown further.
func (s *Session) ForceClose() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()

	s.cancelCurrentTurn()
	s.logger.Error("forcing session closed: turn subtasks did not terminate in time", "session", s.id)
	if err := s.transport.Close(); err != nil {
		s.logger.Warn("transport close failed during force-close", "session", s.id, "error", err)
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// HandleAudioFrame dispatches one 20ms PCM frame according to the current
// state, per spec §4.1/§4.2.
func (s *Session) HandleAudioFrame(frame []byte) {
	s.touch()

	if s.echo.IsEcho(frame) {
		return
	}

	switch s.sm.Current() {
	case StateIdle:
		// Spec §4.2: the SilenceDetector ignores frames while IDLE. In
		// practice IDLE is never observed here — New() transitions to
		// USER_SPEAKING on accept — but a frame arriving in a race before
		// that transition is simply dropped, not evaluated.
	case StateUserSpeaking:
		s.handleUserSpeakingFrame(frame)
	case StateAIProcessing, StateAISpeaking:
		s.handleBargeInCheck(frame)
	default:
		// TIMEOUT or unknown — drop.
	}
}

func (s *Session) handleUserSpeakingFrame(frame []byte) {
	s.mu.Lock()
	s.voicedBuf.Write(frame)
	overCap := s.voicedBuf.Len() >= VoicedBufferCapBytes
	s.mu.Unlock()

	turnEnd, _ := s.vad.ObserveUserSpeaking(frame)
	if turnEnd || overCap {
		s.startTurn()
	}
}

func (s *Session) handleBargeInCheck(frame []byte) {
	if !s.vad.CheckBargeIn(frame) {
		return
	}

	s.cancelCurrentTurn()
	s.echo.Clear()
	s.vad.Reset()

	s.mu.Lock()
	s.voicedBuf.Reset()
	s.voicedBuf.Write(frame)
	s.mu.Unlock()

	s.sm.Transition(StateUserSpeaking)
}

// startTurn hands the buffered voiced audio to a fresh TurnOrchestrator run.
func (s *Session) startTurn() {
	if !s.sm.Transition(StateAIProcessing) {
		return
	}
	s.vad.Reset()

	s.mu.Lock()
	audio := make([]byte, s.voicedBuf.Len())
	copy(audio, s.voicedBuf.Bytes())
	s.voicedBuf.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	s.turnCancel = cancel
	s.mu.Unlock()

	s.turnWG.Add(1)
	go func() {
		defer s.turnWG.Done()
		defer cancel()
		s.turn.RunTurn(ctx, s, audio)
		s.mu.Lock()
		if s.turnCancel != nil {
			s.turnCancel = nil
		}
		s.mu.Unlock()
	}()
}

// cancelCurrentTurn signals cancellation to the in-flight turn, if any. It
// is idempotent: a second call with nothing to cancel is a no-op.
func (s *Session) cancelCurrentTurn() {
	s.mu.Lock()
	cancel := s.turnCancel
	s.turnCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) onStateEnter(state State) {
	s.writeJSON(statusMessage{Type: wireTypeStatus, State: state})
}

// --- Sink implementation, called from TurnOrchestrator's goroutine. ---

func (s *Session) SendTranscript(text string) {
	s.writeJSON(transcriptMessage{Type: wireTypeTranscript, Text: text})
}

func (s *Session) SendTTSText(text string, hasAudio bool) {
	s.writeJSON(ttsTextMessage{Type: wireTypeTTSText, Text: text, HasAudio: hasAudio})
}

func (s *Session) SendAudioChunk(chunk []byte) {
	s.echo.RecordPlayed(chunk)
	if err := s.transport.WriteBinary(chunk); err != nil {
		s.logger.Warn("write audio chunk failed", "session", s.id, "error", err)
	}
}

func (s *Session) SendAudioStart() {
	s.writeJSON(simpleMessage{Type: wireTypeAudioStart})
}

func (s *Session) SendAudioEnd() {
	s.writeJSON(simpleMessage{Type: wireTypeAudioEnd})
}

func (s *Session) SendError(message string) {
	s.writeJSON(errorMessage{Type: wireTypeError, Message: message})
}

func (s *Session) SendInterrupt() {
	s.writeJSON(simpleMessage{Type: wireTypeInterrupt})
}

func (s *Session) RequestTransition(to State) {
	s.sm.Transition(to)
}

func (s *Session) writeJSON(v interface{}) {
	if err := s.transport.WriteJSON(v); err != nil {
		s.logger.Warn("write control message failed", "session", s.id, "error", err)
	}
}
