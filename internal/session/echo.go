package session

import (
	"bytes"
	"math"
	"sync"
	"time"
)

// EchoSuppressor detects microphone input that correlates with recently
// played assistant audio, so that speaker leakage picked up by an open-mic
// setup isn't misclassified as a barge-in or folded into the voiced buffer.
// It is a supplemental feature (disabled by default, see ECHO_SUPPRESSION)
// for deployments where the browser doesn't already do its own acoustic
// echo cancellation. Correlation-based, not a full adaptive AEC.
type EchoSuppressor struct {
	mu             sync.Mutex
	enabled        bool
	playedAudioBuf *bytes.Buffer
	maxBufSize     int
	threshold      float64
	silenceWindow  time.Duration
	lastPlayedAt   time.Time
}

// NewEchoSuppressor returns a suppressor sized for 16kHz mono 16-bit PCM,
// disabled by default.
func NewEchoSuppressor() *EchoSuppressor {
	return &EchoSuppressor{
		playedAudioBuf: new(bytes.Buffer),
		maxBufSize:     64000, // ~2s at 16kHz, 16-bit mono
		threshold:      0.55,
		silenceWindow:  1200 * time.Millisecond,
	}
}

// SetEnabled toggles suppression on/off.
func (es *EchoSuppressor) SetEnabled(enabled bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.enabled = enabled
}

// RecordPlayed records a chunk of audio just sent to the client for
// playback, so later mic input can be checked against it.
func (es *EchoSuppressor) RecordPlayed(chunk []byte) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if !es.enabled || len(chunk) == 0 {
		return
	}
	es.playedAudioBuf.Write(chunk)
	es.lastPlayedAt = time.Now()
	if es.playedAudioBuf.Len() > es.maxBufSize {
		data := es.playedAudioBuf.Bytes()
		trimmed := data[len(data)-es.maxBufSize:]
		es.playedAudioBuf.Reset()
		es.playedAudioBuf.Write(trimmed)
	}
}

// IsEcho reports whether input correlates highly enough with recently
// played audio to be treated as speaker leakage rather than user speech.
func (es *EchoSuppressor) IsEcho(input []byte) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	if !es.enabled || len(input) == 0 {
		return false
	}
	if time.Since(es.lastPlayedAt) > es.silenceWindow {
		return false
	}
	played := es.playedAudioBuf.Bytes()
	if len(played) == 0 {
		return false
	}
	return correlation(input, played) > es.threshold
}

// Clear drops the played-audio buffer, e.g. on interrupt when we want fresh
// user speech to be detected unhindered.
func (es *EchoSuppressor) Clear() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.playedAudioBuf.Reset()
}

// correlation computes the normalized cross-correlation between input and
// the tail of reference (same length as input, to account for
// playback-to-mic latency). Returns a value in [0, 1].
func correlation(input, reference []byte) float64 {
	in := toSamples(input)
	ref := toSamples(reference)
	if len(in) == 0 || len(ref) == 0 {
		return 0
	}

	n := len(in)
	if n > len(ref) {
		n = len(ref)
	}
	refTail := ref[len(ref)-n:]

	inEnergy := energy(in[:n])
	refEnergy := energy(refTail)
	if inEnergy == 0 || refEnergy == 0 {
		return 0
	}

	dot := 0.0
	for i := 0; i < n; i++ {
		dot += in[i] * refTail[i]
	}

	norm := dot / math.Sqrt(inEnergy*refEnergy)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func toSamples(data []byte) []float64 {
	out := make([]float64, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		out = append(out, float64(s)/32768.0)
	}
	return out
}

func energy(samples []float64) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return sum
}
