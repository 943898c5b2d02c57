package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"resumable-chat/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingStore) Put(context.Context, string, string, io.Reader) (string, error) {
	return "", nil
}

func (r *recordingStore) Delete(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), keys...))
	return r.err
}

func TestJanitorSingleCallWithDedupedKeys(t *testing.T) {
	store := &recordingStore{}
	j := NewJanitor(store, logger.Discard())

	j.Schedule([]string{"a", "b", "a", "", "c"})
	j.Wait()

	require.Len(t, store.calls, 1)
	assert.Equal(t, []string{"a", "b", "c"}, store.calls[0])
}

func TestJanitorSkipsEmpty(t *testing.T) {
	store := &recordingStore{}
	j := NewJanitor(store, logger.Discard())
	j.Schedule(nil)
	j.Wait()
	assert.Empty(t, store.calls)
}

func TestJanitorSwallowsErrors(t *testing.T) {
	store := &recordingStore{err: errors.New("bucket gone")}
	j := NewJanitor(store, logger.Discard())
	j.Schedule([]string{"a"})
	j.Wait()
	assert.Len(t, store.calls, 1)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("http://files.local")
	url, err := s.Put(context.Background(), "u/1.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/u/1.png", url)
	assert.True(t, s.Has("u/1.png"))

	require.NoError(t, s.Delete(context.Background(), []string{"u/1.png", "missing"}))
	assert.False(t, s.Has("u/1.png"))
}
