package stream

import (
	"context"
	"errors"

	"resumable-chat/backend/pkg/logger"
	"resumable-chat/backend/pkg/resilience"
)

// ErrNotResumable means the caller must fall back to persisted history.
var ErrNotResumable = errors.New("stream is not resumable")

// Resumer attaches listeners to live streams. It never writes to a stream.
type Resumer struct {
	transport Transport
	breaker   *resilience.CircuitBreaker
	log       *logger.Logger
}

func NewResumer(t Transport, breaker *resilience.CircuitBreaker, log *logger.Logger) *Resumer {
	return &Resumer{transport: t, breaker: breaker, log: log}
}

// Resume returns a tap on streamID, or ErrNotResumable when no producer is
// live. Transport failures are logged and reported as ErrNotResumable too.
func (r *Resumer) Resume(ctx context.Context, streamID string) (Source, error) {
	var src Source
	err := r.breaker.Execute(func() error {
		var err error
		src, err = r.transport.Tap(ctx, streamID)
		if errors.Is(err, ErrNotLive) {
			// absence is an answer, not a transport failure
			return nil
		}
		return err
	})

	switch {
	case err != nil:
		TransportErrors.Inc()
		r.log.WithStreamID(streamID).LogError(err, "stream transport unavailable, treating as not resumable")
		return nil, ErrNotResumable
	case src == nil:
		return nil, ErrNotResumable
	default:
		return src, nil
	}
}
