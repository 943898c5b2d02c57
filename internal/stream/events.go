// Package stream implements resumable generation streams: the per-chat
// registry of stream IDs, the pub/sub transports that carry events between a
// producer and any number of listeners, and the fallback decision used when
// no producer is live.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"resumable-chat/backend/internal/models"
)

// EventType names the kind of an Event.
type EventType string

const (
	EventStart         EventType = "start"
	EventTextDelta     EventType = "text-delta"
	EventToolCall      EventType = "tool-call"
	EventToolResult    EventType = "tool-result"
	EventFinish        EventType = "finish"
	EventError         EventType = "error"
	EventAppendMessage EventType = "append-message"
)

// Event is one frame of a generation stream.
type Event struct {
	Type      EventType       `json:"type"`
	MessageID string          `json:"messageId,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	Part      *models.Part    `json:"part,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Terminal reports whether no event can follow e.
func (e Event) Terminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}

func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

func UnmarshalEvent(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}

// Source is a read-only view of a stream. Next returns io.EOF once the stream
// has ended.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Sink is the producer side of a stream. Close marks the stream finished.
type Sink interface {
	Write(ctx context.Context, ev Event) error
	Close(ctx context.Context) error
}

// ErrIdle ends a tap that saw no event for longer than the idle timeout.
var ErrIdle = errors.New("stream idle timeout")

type sliceSource struct {
	events []Event
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *sliceSource) Close() error { return nil }

// Empty returns a stream that ends immediately.
func Empty() Source { return &sliceSource{} }

// Single returns a stream that yields ev and ends.
func Single(ev Event) Source { return &sliceSource{events: []Event{ev}} }

// FromSlice returns a stream over a fixed list of events.
func FromSlice(events ...Event) Source { return &sliceSource{events: events} }

// Drain reads src until it ends and returns everything it yielded.
func Drain(ctx context.Context, src Source) ([]Event, error) {
	defer src.Close()
	var out []Event
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}
