// Package storage keeps uploaded attachments in object storage.
package storage

import (
	"context"
	"io"
	"sync"
	"time"

	"resumable-chat/backend/pkg/logger"
)

// Store is remote file storage addressed by key.
type Store interface {
	// Put uploads r under key and returns the public URL.
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	// Delete removes every key in one call. Missing keys are not an error.
	Delete(ctx context.Context, keys []string) error
}

// Janitor deletes storage objects in the background once the rows that
// referenced them are gone. Failures are logged and never reach the caller.
type Janitor struct {
	store   Store
	log     *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewJanitor(store Store, log *logger.Logger) *Janitor {
	return &Janitor{store: store, log: log, timeout: time.Minute}
}

// Schedule issues a single asynchronous Delete for keys.
func (j *Janitor) Schedule(keys []string) {
	keys = dedupe(keys)
	if len(keys) == 0 {
		return
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if err := j.store.Delete(ctx, keys); err != nil {
			j.log.LogError(err, "storage cleanup failed", "keys", len(keys))
			return
		}
		j.log.Debug("storage cleanup done", "keys", len(keys))
	}()
}

// Wait blocks until scheduled deletions have finished.
func (j *Janitor) Wait() { j.wg.Wait() }

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
