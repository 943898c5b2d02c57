package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateLive = "live"
	stateDone = "done"

	fieldEvent = "event"
	fieldDone  = "done"
)

// RedisTransport stores each stream as a Redis Stream plus a state key.
// Any API instance can tap a stream produced by any other.
type RedisTransport struct {
	rdb    redis.UniversalClient
	opts   TransportOptions
	prefix string
}

func NewRedisTransport(rdb redis.UniversalClient, opts TransportOptions) *RedisTransport {
	return &RedisTransport{rdb: rdb, opts: opts.withDefaults(), prefix: "chat:stream:"}
}

func (t *RedisTransport) eventsKey(id string) string { return t.prefix + id + ":events" }
func (t *RedisTransport) stateKey(id string) string  { return t.prefix + id + ":state" }

func (t *RedisTransport) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}

func (t *RedisTransport) Produce(ctx context.Context, streamID string) (Sink, error) {
	ok, err := t.rdb.SetNX(ctx, t.stateKey(streamID), stateLive, t.opts.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("register stream: %w", err)
	}
	if !ok {
		return nil, errors.New("stream already exists")
	}
	return &redisSink{t: t, id: streamID}, nil
}

func (t *RedisTransport) Tap(ctx context.Context, streamID string) (Source, error) {
	state, err := t.rdb.Get(ctx, t.stateKey(streamID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotLive
	}
	if err != nil {
		return nil, fmt.Errorf("read stream state: %w", err)
	}
	if state != stateLive {
		return nil, ErrNotLive
	}
	return &redisSource{t: t, key: t.eventsKey(streamID), lastID: "0"}, nil
}

type redisSink struct {
	t  *RedisTransport
	id string
}

func (s *redisSink) Write(ctx context.Context, ev Event) error {
	data, err := ev.Marshal()
	if err != nil {
		return err
	}
	key := s.t.eventsKey(s.id)
	pipe := s.t.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: s.t.opts.MaxLen,
		Approx: true,
		Values: map[string]any{fieldEvent: string(data)},
	})
	pipe.Expire(ctx, key, s.t.opts.TTL)
	pipe.Expire(ctx, s.t.stateKey(s.id), s.t.opts.TTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisSink) Close(ctx context.Context) error {
	key := s.t.eventsKey(s.id)
	pipe := s.t.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]any{fieldDone: "1"}})
	pipe.Expire(ctx, key, s.t.opts.TTL)
	pipe.Set(ctx, s.t.stateKey(s.id), stateDone, s.t.opts.TTL)
	_, err := pipe.Exec(ctx)
	return err
}

type redisSource struct {
	t      *RedisTransport
	key    string
	lastID string
	buf    []redis.XMessage
	ended  bool
}

func (r *redisSource) Next(ctx context.Context) (Event, error) {
	deadline := time.Now().Add(r.t.opts.IdleTimeout)
	for {
		if r.ended {
			return Event{}, io.EOF
		}
		if len(r.buf) > 0 {
			msg := r.buf[0]
			r.buf = r.buf[1:]
			r.lastID = msg.ID
			if _, done := msg.Values[fieldDone]; done {
				r.ended = true
				return Event{}, io.EOF
			}
			raw, _ := msg.Values[fieldEvent].(string)
			ev, err := UnmarshalEvent([]byte(raw))
			if err != nil {
				return Event{}, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
			}
			return ev, nil
		}

		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, ErrIdle
		}
		block := r.t.opts.BlockTimeout
		if block > remaining {
			block = remaining
		}
		if block < time.Millisecond {
			block = time.Millisecond
		}

		res, err := r.t.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.key, r.lastID},
			Count:   100,
			Block:   block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Event{}, fmt.Errorf("read stream: %w", err)
		}
		for _, s := range res {
			r.buf = append(r.buf, s.Messages...)
		}
	}
}

func (r *redisSource) Close() error { return nil }
