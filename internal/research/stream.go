package research

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const doneSentinel = "[DONE]"

// streamEvent is one decoded server-sent event payload.
type streamEvent struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// streamDecoder consumes the event stream chunk by chunk. Chunks arrive at
// arbitrary boundaries, so a trailing partial line is held back until the
// next read completes it. The upstream resends the full assistant message on
// every message event, so the latest one simply replaces the previous
// (last writer wins).
type streamDecoder struct {
	buf     []byte
	message string
	done    bool
}

// feed processes every complete line in chunk and buffers the remainder.
// It returns a non-nil error only for an explicit error event.
func (d *streamDecoder) feed(chunk []byte) error {
	d.buf = append(d.buf, chunk...)

	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return nil
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		if err := d.handleLine(line); err != nil {
			return err
		}
		if d.done {
			return nil
		}
	}
}

// flush handles a final unterminated line at end of stream.
func (d *streamDecoder) flush() error {
	if len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	return d.handleLine(line)
}

func (d *streamDecoder) handleLine(line []byte) error {
	text := strings.TrimRight(string(line), "\r")
	if !strings.HasPrefix(text, "data:") {
		return nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(text, "data:"))
	if payload == "" {
		return nil
	}
	if payload == doneSentinel {
		d.done = true
		return nil
	}

	var event streamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		// Malformed event lines are upstream noise, not fatal.
		slog.Debug("skipping unparseable stream event", "payload", payload)
		return nil
	}

	switch event.Type {
	case "error":
		msg := event.Error
		if msg == "" {
			msg = event.Content
		}
		return fmt.Errorf("upstream error event: %s", msg)
	case "message":
		if event.Role == "" || event.Role == "assistant" {
			d.message = event.Content
		}
	}
	return nil
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// parseAnswer builds the structured result from the final assistant message.
// A fenced ```json block is preferred over the raw text when it parses.
func parseAnswer(message string) Result {
	if m := fencedJSON.FindStringSubmatch(message); m != nil {
		var r Result
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &r); err == nil && (r.Title != "" || r.Content != "") {
			return r
		}
		slog.Debug("fenced json block did not parse, keeping raw text")
	}
	return Result{Content: strings.TrimSpace(message)}
}
