package llm

import (
	"bufio"
	"io"
	"strings"
)

// readSSE scans a text/event-stream body and invokes onData with the
// payload of every "data: " line, in order. It stops at the first "[DONE]"
// sentinel (OpenAI/Groq's end-of-stream marker) or when onData returns
// stop=true, and otherwise runs until EOF.
func readSSE(body io.Reader, onData func(data string) (stop bool, err error)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil
		}

		stop, err := onData(data)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return scanner.Err()
}
