package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// MemoryTransport keeps streams in process. It serves single-instance
// deployments without Redis.
type MemoryTransport struct {
	opts TransportOptions

	mu      sync.Mutex
	streams map[string]*memStream
}

type memStream struct {
	mu      sync.Mutex
	events  []Event
	done    bool
	changed chan struct{}
	// expiry forgets the stream TTL after its last write
	expiry *time.Timer
}

func NewMemoryTransport(opts TransportOptions) *MemoryTransport {
	return &MemoryTransport{opts: opts.withDefaults(), streams: make(map[string]*memStream)}
}

func (t *MemoryTransport) Ping(context.Context) error { return nil }

func (t *MemoryTransport) Produce(_ context.Context, streamID string) (Sink, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.streams[streamID]; ok {
		return nil, errors.New("stream already exists")
	}
	s := &memStream{changed: make(chan struct{})}
	t.streams[streamID] = s
	s.expiry = time.AfterFunc(t.opts.TTL, func() { t.forget(streamID, s) })
	return &memSink{t: t, id: streamID, s: s}, nil
}

func (t *MemoryTransport) forget(id string, s *memStream) {
	t.mu.Lock()
	if t.streams[id] == s {
		delete(t.streams, id)
	}
	t.mu.Unlock()
}

func (t *MemoryTransport) Tap(_ context.Context, streamID string) (Source, error) {
	t.mu.Lock()
	s, ok := t.streams[streamID]
	t.mu.Unlock()
	if !ok {
		return nil, ErrNotLive
	}
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done {
		return nil, ErrNotLive
	}
	return &memSource{s: s, idle: t.opts.IdleTimeout}, nil
}

type memSink struct {
	t  *MemoryTransport
	id string
	s  *memStream
}

func (k *memSink) Write(_ context.Context, ev Event) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	if k.s.done {
		return errors.New("write to closed stream")
	}
	k.s.events = append(k.s.events, ev)
	k.s.expiry.Reset(k.t.opts.TTL)
	close(k.s.changed)
	k.s.changed = make(chan struct{})
	return nil
}

func (k *memSink) Close(context.Context) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	if k.s.done {
		return nil
	}
	k.s.done = true
	k.s.expiry.Reset(k.t.opts.TTL)
	close(k.s.changed)
	k.s.changed = make(chan struct{})
	return nil
}

type memSource struct {
	s    *memStream
	pos  int
	idle time.Duration
}

func (m *memSource) Next(ctx context.Context) (Event, error) {
	timer := time.NewTimer(m.idle)
	defer timer.Stop()
	for {
		m.s.mu.Lock()
		if m.pos < len(m.s.events) {
			ev := m.s.events[m.pos]
			m.pos++
			m.s.mu.Unlock()
			return ev, nil
		}
		if m.s.done {
			m.s.mu.Unlock()
			return Event{}, io.EOF
		}
		wait := m.s.changed
		m.s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-timer.C:
			return Event{}, ErrIdle
		case <-wait:
		}
	}
}

func (m *memSource) Close() error { return nil }
