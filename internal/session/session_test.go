package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

type mockTransport struct {
	mu       sync.Mutex
	jsonMsgs []interface{}
	binMsgs  [][]byte
}

func (t *mockTransport) WriteJSON(v interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jsonMsgs = append(t.jsonMsgs, v)
	return nil
}

func (t *mockTransport) WriteBinary(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	t.binMsgs = append(t.binMsgs, cp)
	return nil
}

func (t *mockTransport) Close() error { return nil }

func (t *mockTransport) statusStates() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []State
	for _, m := range t.jsonMsgs {
		if sm, ok := m.(statusMessage); ok {
			out = append(out, sm.State)
		}
	}
	return out
}

func newTestSession(t *testing.T, stt STTProvider, llm LLMProvider, tts TTSProvider) (*Session, *mockTransport) {
	t.Helper()
	transport := &mockTransport{}
	sess, err := New("test-session", stt, llm, tts, transport, nil, Options{SilenceTurnEndMs: 40})
	if err != nil {
		t.Fatalf("unexpected error constructing session: %v", err)
	}
	return sess, transport
}

func TestNewRejectsNilProvider(t *testing.T) {
	transport := &mockTransport{}
	stt := &stubSTT{text: "hi"}
	llm := &stubLLM{reply: "ok"}
	tts := &stubTTS{}

	if _, err := New("s", nil, llm, tts, transport, nil, Options{}); err != ErrNilProvider {
		t.Errorf("expected ErrNilProvider for nil STT, got %v", err)
	}
	if _, err := New("s", stt, nil, tts, transport, nil, Options{}); err != ErrNilProvider {
		t.Errorf("expected ErrNilProvider for nil LLM, got %v", err)
	}
	if _, err := New("s", stt, llm, nil, transport, nil, Options{}); err != ErrNilProvider {
		t.Errorf("expected ErrNilProvider for nil TTS, got %v", err)
	}
	if _, err := New("s", stt, llm, tts, nil, nil, Options{}); err != ErrNilProvider {
		t.Errorf("expected ErrNilProvider for nil transport, got %v", err)
	}
}

func TestSessionFullTurnReachesUserSpeaking(t *testing.T) {
	stt := &stubSTT{text: "hello there"}
	llm := &stubLLM{reply: "hi back. "}
	tts := &stubTTS{}
	sess, transport := newTestSession(t, stt, llm, tts)

	for i := 0; i < MinVoicedFrames; i++ {
		sess.HandleAudioFrame(makeFrame(5000))
	}
	for i := 0; i < 4; i++ {
		sess.HandleAudioFrame(makeFrame(0))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		states := transport.statusStates()
		if len(states) > 1 && states[len(states)-1] == StateUserSpeaking && sess.sm.Current() == StateUserSpeaking {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	states := transport.statusStates()
	if len(states) < 2 {
		t.Fatalf("expected the turn's status transitions after the initial USER_SPEAKING, got %v", states)
	}
	if got := states[len(states)-1]; got != StateUserSpeaking {
		t.Errorf("expected final state USER_SPEAKING, got %v", got)
	}
	if sess.mem.Len() != 2 {
		t.Errorf("expected the completed turn committed to memory, got %d entries", sess.mem.Len())
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	sess, _ := newTestSession(t, &stubSTT{text: "hi"}, &stubLLM{reply: "ok"}, &stubTTS{})
	sess.Close()
	sess.Close() // must not panic or block
}

func TestHandleAudioFrameDropsEchoedInput(t *testing.T) {
	sess, transport := newTestSession(t, &stubSTT{text: "hi"}, &stubLLM{reply: "ok"}, &stubTTS{})
	sess.echo.SetEnabled(true)
	chunk := makeFrame(5000)
	sess.echo.RecordPlayed(chunk)

	before := sess.sm.Current()
	sess.HandleAudioFrame(chunk)

	if sess.sm.Current() != before {
		t.Errorf("echoed frame must not trigger a state transition, got %v", sess.sm.Current())
	}
	sess.mu.Lock()
	buffered := sess.voicedBuf.Len()
	sess.mu.Unlock()
	if buffered != 0 {
		t.Errorf("echoed frame must not be added to the voiced buffer, got %d bytes", buffered)
	}
	_ = transport
}

func TestHandleBargeInCancelsTurnAndReturnsToUserSpeaking(t *testing.T) {
	blockingLLM := &blockUntilCancelledLLM{unblock: make(chan struct{})}
	sess, _ := newTestSession(t, &stubSTT{text: "hello there"}, blockingLLM, &stubTTS{})

	for i := 0; i < MinVoicedFrames; i++ {
		sess.HandleAudioFrame(makeFrame(5000))
	}
	for i := 0; i < 4; i++ {
		sess.HandleAudioFrame(makeFrame(0))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sess.sm.Current() != StateAIProcessing && sess.sm.Current() != StateAISpeaking {
		time.Sleep(5 * time.Millisecond)
	}

	sess.HandleAudioFrame(makeFrame(9000)) // above BargeInRMS

	if sess.sm.Current() != StateUserSpeaking {
		t.Errorf("expected immediate transition to USER_SPEAKING on barge-in, got %v", sess.sm.Current())
	}
	close(blockingLLM.unblock)
	sess.Close()
}

type blockUntilCancelledLLM struct {
	unblock chan struct{}
}

func (l *blockUntilCancelledLLM) Stream(ctx context.Context, messages []Message, onToken func(string) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.unblock:
		return nil
	}
}

func (l *blockUntilCancelledLLM) Name() string { return "blocking-llm" }
