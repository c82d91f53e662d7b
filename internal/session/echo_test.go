package session

import (
	"encoding/binary"
	"testing"
)

func sineFrame(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(5000)
		if i%2 == 0 {
			v = -5000
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestEchoSuppressorDisabledByDefault(t *testing.T) {
	es := NewEchoSuppressor()
	chunk := sineFrame(320)
	es.RecordPlayed(chunk)
	if es.IsEcho(chunk) {
		t.Error("disabled suppressor should never classify as echo")
	}
}

func TestEchoSuppressorDetectsPlayedAudio(t *testing.T) {
	es := NewEchoSuppressor()
	es.SetEnabled(true)
	chunk := sineFrame(320)
	es.RecordPlayed(chunk)

	if !es.IsEcho(chunk) {
		t.Error("identical audio just played back should be classified as echo")
	}
}

func TestEchoSuppressorIgnoresUncorrelatedInput(t *testing.T) {
	es := NewEchoSuppressor()
	es.SetEnabled(true)
	es.RecordPlayed(sineFrame(320))

	silence := make([]byte, 640)
	if es.IsEcho(silence) {
		t.Error("silence should not correlate with played audio")
	}
}

func TestEchoSuppressorClear(t *testing.T) {
	es := NewEchoSuppressor()
	es.SetEnabled(true)
	chunk := sineFrame(320)
	es.RecordPlayed(chunk)
	es.Clear()

	if es.IsEcho(chunk) {
		t.Error("IsEcho should report false once the played-audio buffer has been cleared")
	}
}
