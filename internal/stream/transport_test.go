package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"resumable-chat/backend/pkg/logger"
	"resumable-chat/backend/pkg/resilience"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = TransportOptions{TTL: time.Minute, IdleTimeout: 2 * time.Second, BlockTimeout: 50 * time.Millisecond}

func transports(t *testing.T) map[string]Transport {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Transport{
		"memory": NewMemoryTransport(testOpts),
		"redis":  NewRedisTransport(rdb, testOpts),
	}
}

func delta(s string) Event { return Event{Type: EventTextDelta, MessageID: "m", Delta: s} }

func TestTransportTapSeesBacklogThenFollows(t *testing.T) {
	for name, tr := range transports(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sink, err := tr.Produce(ctx, "s-1")
			require.NoError(t, err)
			require.NoError(t, sink.Write(ctx, delta("a")))
			require.NoError(t, sink.Write(ctx, delta("b")))

			src, err := tr.Tap(ctx, "s-1")
			require.NoError(t, err)

			var got []Event
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err = Drain(ctx, src)
			}()

			require.NoError(t, sink.Write(ctx, delta("c")))
			require.NoError(t, sink.Write(ctx, Event{Type: EventFinish, MessageID: "m"}))
			require.NoError(t, sink.Close(ctx))
			wg.Wait()

			require.NoError(t, err)
			require.Len(t, got, 4)
			assert.Equal(t, "a", got[0].Delta)
			assert.Equal(t, "c", got[2].Delta)
			assert.Equal(t, EventFinish, got[3].Type)
		})
	}
}

func TestTransportTapNotLive(t *testing.T) {
	for name, tr := range transports(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := tr.Tap(ctx, "never")
			assert.ErrorIs(t, err, ErrNotLive)

			sink, err := tr.Produce(ctx, "finished")
			require.NoError(t, err)
			require.NoError(t, sink.Close(ctx))
			_, err = tr.Tap(ctx, "finished")
			assert.ErrorIs(t, err, ErrNotLive)
		})
	}
}

func TestTransportIdleTimeout(t *testing.T) {
	opts := TransportOptions{TTL: time.Minute, IdleTimeout: 100 * time.Millisecond, BlockTimeout: 20 * time.Millisecond}
	tr := NewMemoryTransport(opts)
	ctx := context.Background()
	_, err := tr.Produce(ctx, "quiet")
	require.NoError(t, err)

	src, err := tr.Tap(ctx, "quiet")
	require.NoError(t, err)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrIdle)
}

func TestTransportRejectsDuplicateProducer(t *testing.T) {
	for name, tr := range transports(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := tr.Produce(ctx, "dup")
			require.NoError(t, err)
			_, err = tr.Produce(ctx, "dup")
			assert.Error(t, err)
		})
	}
}

type brokenTransport struct{ *MemoryTransport }

func (*brokenTransport) Tap(context.Context, string) (Source, error) {
	return nil, errors.New("connection reset by peer")
}

func TestResumerMapsFailuresToNotResumable(t *testing.T) {
	log := logger.Discard()
	ctx := context.Background()

	broken := NewResumer(&brokenTransport{NewMemoryTransport(testOpts)}, resilience.NewCircuitBreaker(resilience.DefaultConfig("t"), log), log)
	_, err := broken.Resume(ctx, "s")
	assert.ErrorIs(t, err, ErrNotResumable)

	mem := NewMemoryTransport(testOpts)
	r := NewResumer(mem, resilience.NewCircuitBreaker(resilience.DefaultConfig("t"), log), log)
	_, err = r.Resume(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotResumable)

	_, err = mem.Produce(ctx, "live")
	require.NoError(t, err)
	src, err := r.Resume(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, src)
}

func TestResumerNotLiveDoesNotTripBreaker(t *testing.T) {
	log := logger.Discard()
	cb := resilience.NewCircuitBreaker(resilience.Config{Name: "t", FailureThreshold: 1, RetryTimeout: time.Minute}, log)
	r := NewResumer(NewMemoryTransport(testOpts), cb, log)

	for i := 0; i < 3; i++ {
		_, err := r.Resume(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotResumable)
	}
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestMemoryTransportExpiryFollowsLastWrite(t *testing.T) {
	ctx := context.Background()
	ttl := 150 * time.Millisecond
	tr := NewMemoryTransport(TransportOptions{TTL: ttl, IdleTimeout: time.Second})

	sink, err := tr.Produce(ctx, "long")
	require.NoError(t, err)

	// a producer that keeps writing stays live well past one TTL
	for i := 0; i < 6; i++ {
		time.Sleep(ttl / 3)
		require.NoError(t, sink.Write(ctx, delta("x")))
	}
	src, err := tr.Tap(ctx, "long")
	require.NoError(t, err)
	require.NoError(t, src.Close())

	// once writes stop the state is dropped a TTL later
	require.NoError(t, sink.Close(ctx))
	assert.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		_, ok := tr.streams["long"]
		return !ok
	}, 3*ttl, 10*time.Millisecond)
}
