package stream

import (
	"context"
	"errors"
	"time"
)

// ErrNotLive is returned by Tap when no producer is writing the stream:
// it finished, expired, or never existed.
var ErrNotLive = errors.New("stream is not live")

// Transport carries a stream's events from its single producer to any number
// of read-only taps. A tap first sees every event produced so far, then
// follows the producer until it closes.
type Transport interface {
	Produce(ctx context.Context, streamID string) (Sink, error)
	Tap(ctx context.Context, streamID string) (Source, error)
	Ping(ctx context.Context) error
}

// TransportOptions bound how long stream state is kept and how long a tap
// waits for the next event.
type TransportOptions struct {
	TTL          time.Duration
	IdleTimeout  time.Duration
	BlockTimeout time.Duration
	MaxLen       int64
}

func (o TransportOptions) withDefaults() TransportOptions {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Minute
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = time.Minute
	}
	if o.BlockTimeout <= 0 || o.BlockTimeout > o.IdleTimeout {
		o.BlockTimeout = o.IdleTimeout
	}
	if o.MaxLen <= 0 {
		o.MaxLen = 10000
	}
	return o
}
