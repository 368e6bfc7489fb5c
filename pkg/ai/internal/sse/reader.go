// ABOUTME: Server-Sent Events decoder for provider streaming responses
// ABOUTME: Handles event/data/id fields, multi-line data, comments, and CRLF line endings

package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxLineSize bounds a single SSE line.
const MaxLineSize = 1 << 20

// ErrLineTooLong is returned when a line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("sse: line too long")

// Event is one dispatched Server-Sent Event.
type Event struct {
	Type string
	Data string
	ID   string
}

// Reader decodes events from a stream.
type Reader struct {
	r    *bufio.Reader
	line []byte
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event, or io.EOF when the stream ends. A trailing
// event without a blank line terminator is still returned.
func (r *Reader) Next() (*Event, error) {
	var (
		ev      Event
		data    bytes.Buffer
		hasData bool
		seen    bool
	)
	for {
		line, err := r.readLine()
		if errors.Is(err, io.EOF) && seen {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			if seen {
				break
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			ev.Type = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		case "id":
			ev.ID = string(value)
		default:
			continue
		}
		seen = true
	}
	ev.Data = data.String()
	return &ev, nil
}

// readLine returns one line without its terminator.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	for {
		chunk, isPrefix, err := r.r.ReadLine()
		r.line = append(r.line, chunk...)
		if len(r.line) > MaxLineSize {
			return nil, fmt.Errorf("%w (%d bytes)", ErrLineTooLong, len(r.line))
		}
		if err != nil {
			return r.line, err
		}
		if !isPrefix {
			return r.line, nil
		}
	}
}
