package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// DataPrefix marks a line that carries an event payload.
	DataPrefix = "data: "
	// DoneSentinel is the payload that marks the end of the stream.
	DoneSentinel = "[DONE]"

	readChunkSize = 4 * 1024
	// maxLineSize bounds a single buffered line so a server that never sends
	// a newline cannot grow memory without limit.
	maxLineSize = 1024 * 1024
)

var errLineTooLong = errors.New("stream line exceeds 1MiB")

// LineDecoder splits a byte stream into lines, keeping any trailing partial
// line until the next chunk completes it.
type LineDecoder struct {
	buf []byte
}

// Feed appends chunk and returns every line it completed, without the line
// terminator. A trailing "\r" is trimmed.
func (d *LineDecoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(d.buf[:i], []byte("\r"))))
		d.buf = d.buf[i+1:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return lines
}

// Flush returns the unterminated remainder, if any, and resets the decoder.
func (d *LineDecoder) Flush() (string, bool) {
	if len(d.buf) == 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(d.buf, []byte("\r")))
	d.buf = nil
	return line, true
}

// Pending returns the number of buffered bytes not yet forming a line.
func (d *LineDecoder) Pending() int {
	return len(d.buf)
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseDataLine extracts the text delta from a single stream line.
// It returns false for non-data lines, the done sentinel, undecodable
// payloads and payloads without content.
func ParseDataLine(line string) (string, bool) {
	if !strings.HasPrefix(line, DataPrefix) {
		return "", false
	}
	payload := line[len(DataPrefix):]
	if payload == DoneSentinel {
		return "", false
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, true
}

// decodeStream reads body until EOF and emits one EventDelta per decoded line.
// Cancellation of ctx ends decoding without an error.
func decodeStream(ctx context.Context, body io.Reader, events chan<- Event) error {
	var dec LineDecoder
	buf := make([]byte, readChunkSize)

	deliver := func(lines ...string) bool {
		for _, line := range lines {
			text, ok := ParseDataLine(line)
			if !ok {
				continue
			}
			if !emit(ctx, events, Event{Type: EventDelta, Text: text}) {
				return false
			}
		}
		return true
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if !deliver(dec.Feed(buf[:n])...) {
				return nil
			}
			if dec.Pending() > maxLineSize {
				return errLineTooLong
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read stream: %w", err)
		}
		if line, ok := dec.Flush(); ok {
			deliver(line)
		}
		return nil
	}
}
