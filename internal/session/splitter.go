package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// devanagariFullStop is '।' (U+0964), a sentence boundary in Hindi/Sanskrit
// script text that an LLM replying in those languages will produce instead
// of a Latin period.
const devanagariFullStop = '।'

// SentenceSplitter converts an incremental LLM token stream into a sequence
// of speakable sentences, hand-rolled per spec (no NLP library). A boundary
// is the shortest suffix ending in '.', '!', '?', '\n', or '।', followed by
// whitespace, whose trimmed content has at least 3 non-space runes.
// Abbreviations are not disambiguated.
type SentenceSplitter struct {
	buf strings.Builder
}

// NewSentenceSplitter returns an empty splitter.
func NewSentenceSplitter() *SentenceSplitter {
	return &SentenceSplitter{}
}

func isBoundaryRune(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', devanagariFullStop:
		return true
	default:
		return false
	}
}

func nonSpaceRuneCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Feed appends token to the internal buffer and returns every complete
// sentence that can now be extracted, in order. Feeding one token at a time
// versus feeding the entire stream at once yields the same emitted
// sequence, since extraction only ever depends on buffered content already
// seen.
func (s *SentenceSplitter) Feed(token string) []string {
	s.buf.WriteString(token)
	var out []string

	for {
		current := s.buf.String()
		sentence, rest, ok := extractSentence(current)
		if !ok {
			break
		}
		out = append(out, sentence)
		s.buf.Reset()
		s.buf.WriteString(rest)
	}

	return out
}

// Flush returns the trailing buffered text (trimmed) as a final sentence if
// non-empty, and clears the buffer. Called once at LLM stream end.
func (s *SentenceSplitter) Flush() (string, bool) {
	remaining := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if remaining == "" {
		return "", false
	}
	return remaining, true
}

// extractSentence scans buf left to right for the first qualifying boundary
// and returns the trimmed sentence plus the unconsumed remainder. ok is
// false when no qualifying boundary is present yet.
func extractSentence(buf string) (sentence string, rest string, ok bool) {
	for i, r := range buf {
		if !isBoundaryRune(r) {
			continue
		}

		nextIdx := i + utf8.RuneLen(r)
		if nextIdx >= len(buf) {
			// No following character buffered yet — might be end-of-stream,
			// but we don't know that here; only Flush treats this as a
			// boundary.
			continue
		}

		nextRune, _ := utf8.DecodeRuneInString(buf[nextIdx:])
		if !unicode.IsSpace(nextRune) {
			continue
		}

		candidate := strings.TrimSpace(buf[:nextIdx])
		if nonSpaceRuneCount(candidate) < 3 {
			continue
		}

		return candidate, buf[nextIdx:], true
	}

	return "", buf, false
}
