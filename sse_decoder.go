package securenotify

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// frameDecoder incrementally decodes the SSE wire format. The transport may
// deliver partial lines; the decoder splits on newline boundaries only and
// carries incomplete trailing data into the next chunk.
//
// Field handling follows the service's stream contract: a data field
// completes and dispatches the accumulated frame immediately; a blank line
// resets the event type to "message" and clears the id; lines starting with
// ':' are comments; a retry field updates the reconnect base delay.
type frameDecoder struct {
	remainder []byte
	eventType string
	eventID   string

	onFrame func(eventType, id, data string)
	onRetry func(delay time.Duration)
}

func newFrameDecoder(onFrame func(eventType, id, data string), onRetry func(delay time.Duration)) *frameDecoder {
	return &frameDecoder{
		eventType: "message",
		onFrame:   onFrame,
		onRetry:   onRetry,
	}
}

// Feed consumes one chunk of streamed text, dispatching any frames the chunk
// completes.
func (d *frameDecoder) Feed(chunk []byte) {
	data := chunk
	if len(d.remainder) > 0 {
		data = append(d.remainder, chunk...)
		d.remainder = nil
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := data[:idx]
		data = data[idx+1:]
		d.processLine(string(bytes.TrimSuffix(line, []byte{'\r'})))
	}

	if len(data) > 0 {
		d.remainder = append([]byte(nil), data...)
	}
}

func (d *frameDecoder) processLine(line string) {
	if line == "" {
		// End of event: reset frame state for the next one.
		d.eventType = "message"
		d.eventID = ""
		return
	}
	if line[0] == ':' {
		return
	}

	field := line
	value := ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		field = line[:i]
		value = strings.TrimLeft(line[i+1:], " ")
	}

	switch field {
	case "event":
		d.eventType = value
	case "id":
		d.eventID = value
	case "data":
		d.onFrame(d.eventType, d.eventID, value)
		d.eventType = "message"
		d.eventID = ""
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 && d.onRetry != nil {
			d.onRetry(time.Duration(ms) * time.Millisecond)
		}
	}
}
