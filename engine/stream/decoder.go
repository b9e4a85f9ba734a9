// Package stream consumes Server-Sent-Events style responses from the
// castnote API: a decoder that turns raw bytes into discrete events, and a
// session that drives a stream to completion with idle detection and
// resume-cursor tracking.
package stream

import (
	"bytes"
	"io"
	"strings"
)

// Event is one parsed unit from an event stream. ID is an opaque resume
// cursor, Type is the server-defined event name (empty for the default
// type), and Data holds the newline-joined data lines.
type Event struct {
	ID   string
	Type string
	Data string
}

// EventComplete is the type of a synthetic one-shot event built from a
// plain JSON response body.
const EventComplete = "complete"

// Decoder assembles events from arbitrarily chunked bytes. The zero value
// is ready to use. Feeding the same bytes in different chunkings yields
// the same event sequence.
type Decoder struct {
	buf         []byte
	pendingID   string
	pendingType string
	dataLines   []string
	hasField    bool
}

// Feed appends a chunk and returns every event completed by it. The final
// incomplete line, if any, stays buffered until more bytes arrive.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]
		if ev, ok := d.feedLine(strings.TrimSuffix(line, "\r")); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush emits the pending event when the stream ended without a trailing
// blank line. Any buffered partial line counts as a final line first.
func (d *Decoder) Flush() (Event, bool) {
	if len(d.buf) > 0 {
		line := strings.TrimSuffix(string(d.buf), "\r")
		d.buf = nil
		if ev, ok := d.feedLine(line); ok {
			// A blank final line already terminated the event.
			return ev, true
		}
	}
	if !d.hasField {
		return Event{}, false
	}
	ev := d.pendingEvent()
	d.resetPending()
	return ev, true
}

func (d *Decoder) feedLine(line string) (Event, bool) {
	switch {
	case line == "":
		if !d.hasField {
			return Event{}, false
		}
		ev := d.pendingEvent()
		d.resetPending()
		return ev, true
	case strings.HasPrefix(line, ":"):
		// Comment / heartbeat.
		return Event{}, false
	default:
		name, value := splitField(line)
		d.setField(name, value)
		return Event{}, false
	}
}

func (d *Decoder) setField(name, value string) {
	switch name {
	case "id":
		d.pendingID = value
	case "event":
		d.pendingType = value
	case "data":
		d.dataLines = append(d.dataLines, value)
	default:
		// Unrecognized fields are ignored.
		return
	}
	d.hasField = true
}

func (d *Decoder) pendingEvent() Event {
	return Event{
		ID:   d.pendingID,
		Type: d.pendingType,
		Data: strings.Join(d.dataLines, "\n"),
	}
}

func (d *Decoder) resetPending() {
	d.pendingID = ""
	d.pendingType = ""
	d.dataLines = nil
	d.hasField = false
}

// splitField splits "name: value" per event-stream framing. A line with no
// colon is a field name with an empty value. A single leading space after
// the colon is stripped.
func splitField(line string) (string, string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	name := line[:idx]
	value := line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return name, value
}

// Reader yields events lazily from a byte stream. It is finite and
// non-restartable: after Next returns io.EOF it returns io.EOF forever.
type Reader struct {
	src     io.Reader
	dec     Decoder
	queue   []Event
	done    bool
	buf     []byte
	readErr error
}

// NewReader wraps src in an event reader.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, buf: make([]byte, 4096)}
}

// Next returns the next event in arrival order. It returns io.EOF once the
// underlying stream ends, after flushing any unterminated pending event.
func (r *Reader) Next() (Event, error) {
	for {
		if len(r.queue) > 0 {
			ev := r.queue[0]
			r.queue = r.queue[1:]
			return ev, nil
		}
		if r.done {
			if r.readErr != nil {
				err := r.readErr
				r.readErr = nil
				return Event{}, err
			}
			return Event{}, io.EOF
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.queue = r.dec.Feed(r.buf[:n])
		}
		if err != nil {
			r.done = true
			if err != io.EOF {
				r.readErr = err
			}
			if ev, ok := r.dec.Flush(); ok {
				r.queue = append(r.queue, ev)
			}
		}
	}
}
