package mistral

import (
	"bufio"
	"context"
	"io"
	"iter"
	"strings"
)

const doneSentinel = "[DONE]"

// Event is one server-sent event. Type is empty for ordinary data frames and
// set for error frames.
type Event struct {
	Type string
	Data string
}

// EventReader splits a text/event-stream body into events. It is forward
// only and not safe for concurrent use.
type EventReader struct {
	scanner *bufio.Scanner
}

// NewEventReader creates a reader over r.
func NewEventReader(r io.Reader) *EventReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &EventReader{scanner: s}
}

// Next returns the next complete event. It returns io.EOF once the body is
// exhausted; an event the body ends in the middle of is discarded.
func (r *EventReader) Next() (Event, error) {
	var ev Event
	pending := false
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")

		if line == "" {
			if !pending {
				continue
			}
			if ev.Data == doneSentinel {
				ev, pending = Event{}, false
				continue
			}
			return ev, nil
		}

		switch {
		case strings.HasPrefix(line, "data:"):
			ev.Data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			pending = true
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			pending = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Events iterates over the remaining events. Iteration stops at the end of
// the body, on a read error, or when ctx is done; errors are yielded once
// as the final element.
func (r *EventReader) Events(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			ev, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				yield(Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}
