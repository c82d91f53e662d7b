package session

import "math"

// Frame-level constants from the spec. A frame is always 20ms of mono
// 16-bit PCM at 16kHz: 320 samples, 640 bytes.
const (
	FrameDurationMs = 20
	FrameSamples    = 320
	FrameBytes      = FrameSamples * 2

	SilenceRMS        = 150
	SilenceTurnEndMs   = 700
	BargeInRMS         = 800
	MinVoicedFrames    = 5

	// VoicedBufferCapBytes is the ~10s / 320KB cap on the per-turn voiced
	// buffer. At 16kHz 16-bit mono, 10s = 320,000 bytes; rounded to the
	// spec's stated 320KB.
	VoicedBufferCapBytes = 320 * 1024
)

// silenceFramesForTurnEnd is SilenceTurnEndMs expressed in frame counts.
const silenceFramesForTurnEnd = SilenceTurnEndMs / FrameDurationMs

// SilenceDetector classifies 20ms frames by RMS energy and tracks the
// hysteresis counters the spec requires: consecutive silent frames (for
// turn-end) and voiced frame count (for the MIN_VOICED guard). It does not
// know about Session states; the caller (Session) decides what a
// classification means given the current state, exactly as spec.md
// describes ("Behavior by state").
type SilenceDetector struct {
	silenceRMS      float64
	turnEndFrames   int
	bargeInRMS      float64
	minVoiced       int

	consecutiveSilentFrames int
	voicedFrameCount        int
	lastRMS                 float64
}

// NewSilenceDetector builds a detector with the spec's default thresholds.
// turnEndMs overrides SilenceTurnEndMs when non-zero, so callers can pick
// the PRD's 900ms instead of the implementation's 700ms (Open Question 1).
func NewSilenceDetector(turnEndMs int) *SilenceDetector {
	if turnEndMs <= 0 {
		turnEndMs = SilenceTurnEndMs
	}
	return &SilenceDetector{
		silenceRMS:    SilenceRMS,
		turnEndFrames: turnEndMs / FrameDurationMs,
		bargeInRMS:    BargeInRMS,
		minVoiced:     MinVoicedFrames,
	}
}

// RMS computes the root-mean-square amplitude of a 16-bit little-endian PCM
// frame, in raw integer-amplitude units (not normalized to [-1,1]).
func RMS(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i+1 < len(frame); i += 2 {
		s := int16(uint16(frame[i]) | uint16(frame[i+1])<<8)
		f := float64(s)
		sum += f * f
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// LastRMS returns the RMS computed by the most recent call to any
// Observe*/Check* method.
func (d *SilenceDetector) LastRMS() float64 {
	return d.lastRMS
}

// IsVoiced reports whether rms classifies as speech (>= SILENCE_RMS).
func IsVoiced(rms float64) bool {
	return rms >= SilenceRMS
}

// ObserveUserSpeaking feeds one frame while the session is in
// USER_SPEAKING. It returns turnEnd=true exactly when consecutive silence
// has reached the configured threshold AND enough voiced frames have been
// seen (MIN_VOICED); returns voiced=true when this particular frame counted
// as speech.
func (d *SilenceDetector) ObserveUserSpeaking(frame []byte) (turnEnd bool, voiced bool) {
	rms := RMS(frame)
	d.lastRMS = rms

	if IsVoiced(rms) {
		d.consecutiveSilentFrames = 0
		d.voicedFrameCount++
		return false, true
	}

	d.consecutiveSilentFrames++
	if d.consecutiveSilentFrames >= d.turnEndFrames {
		if d.voicedFrameCount >= d.minVoiced {
			return true, false
		}
		// Silence persists but we haven't seen enough voiced frames yet;
		// spec: "do nothing and keep waiting." The silent-frame counter keeps
		// growing, but the next voiced frame resets it to zero, so once
		// MIN_VOICED is reached a full silence window must pass again before
		// turn-end.
	}
	return false, false
}

// CheckBargeIn reports whether a single frame observed while the session is
// in AI_PROCESSING or AI_SPEAKING should be treated as a barge-in. Per spec
// this is a single-frame trigger with no debounce.
func (d *SilenceDetector) CheckBargeIn(frame []byte) bool {
	rms := RMS(frame)
	d.lastRMS = rms
	return rms >= d.bargeInRMS
}

// VoicedFrameCount returns the number of voiced frames accumulated since the
// last Reset.
func (d *SilenceDetector) VoicedFrameCount() int {
	return d.voicedFrameCount
}

// Reset clears all hysteresis counters. Called at the start of every new
// USER_SPEAKING period (turn boundary, barge-in resumption).
func (d *SilenceDetector) Reset() {
	d.consecutiveSilentFrames = 0
	d.voicedFrameCount = 0
}
