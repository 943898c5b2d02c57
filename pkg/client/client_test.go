package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func writeEvents(t *testing.T, w http.ResponseWriter, done bool, events ...stream.Event) {
	t.Helper()
	for _, ev := range events {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		fmt.Fprintf(w, "data: %s\n\n", b)
	}
	if done {
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
	w.(http.Flusher).Flush()
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
}

func assistant(id, text string) *models.Message {
	return &models.Message{
		ID:    id,
		Role:  models.RoleAssistant,
		Parts: datatypes.NewJSONSlice([]models.Part{{Type: models.PartText, Text: text}}),
	}
}

func userMsg(id, text string) models.Message {
	return models.Message{
		ID:    id,
		Role:  models.RoleUser,
		Parts: datatypes.NewJSONSlice([]models.Part{{Type: models.PartText, Text: text}}),
	}
}

func TestConcurrentResumesMergeOnce(t *testing.T) {
	replayed := assistant("a1", "hello")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		writeEvents(t, w, true, stream.Event{Type: stream.EventAppendMessage, MessageID: "a1", Message: replayed})
	}))
	defer srv.Close()

	c := New(srv.URL)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done, err := c.Resume(context.Background(), "chat-1")
			assert.NoError(t, err)
			assert.True(t, done)
		}()
	}
	wg.Wait()

	msgs := c.Store.Messages("chat-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text())
}

func TestStaleResumeIgnoredAfterSend(t *testing.T) {
	resumeEntered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /generate/{chatID}/resume", func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		w.(http.Flusher).Flush()
		close(resumeEntered)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeEvents(t, w, true, stream.Event{Type: stream.EventAppendMessage, MessageID: "stale", Message: assistant("stale", "old answer")})
	})
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		writeEvents(t, w, true,
			stream.Event{Type: stream.EventStart, MessageID: "a2"},
			stream.Event{Type: stream.EventTextDelta, MessageID: "a2", Delta: "new answer"},
			stream.Event{Type: stream.EventFinish, MessageID: "a2"},
		)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	resumeErr := make(chan error, 1)
	go func() {
		_, err := c.Resume(context.Background(), "chat-1")
		resumeErr <- err
	}()

	select {
	case <-resumeEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("resume never reached the server")
	}

	done, err := c.Send(context.Background(), "chat-1", userMsg("u2", "question"), SendOptions{})
	require.NoError(t, err)
	assert.True(t, done)

	select {
	case err := <-resumeErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("resume was not cancelled by send")
	}

	msgs := c.Store.Messages("chat-1")
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"u2", "a2"}, ids)
	assert.Equal(t, "new answer", msgs[1].Text())
}

func TestResumeAfterDropAssemblesReplyOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		// connection drops mid-reply: no finish, no [DONE]
		writeEvents(t, w, false,
			stream.Event{Type: stream.EventStart, MessageID: "a1"},
			stream.Event{Type: stream.EventTextDelta, MessageID: "a1", Delta: "Hel"},
		)
	})
	mux.HandleFunc("GET /generate/{chatID}/resume", func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		// a live tap replays from the first event
		writeEvents(t, w, true,
			stream.Event{Type: stream.EventStart, MessageID: "a1"},
			stream.Event{Type: stream.EventTextDelta, MessageID: "a1", Delta: "Hel"},
			stream.Event{Type: stream.EventTextDelta, MessageID: "a1", Delta: "lo"},
			stream.Event{Type: stream.EventFinish, MessageID: "a1"},
		)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	done, err := c.Send(context.Background(), "chat-1", userMsg("u1", "hi"), SendOptions{})
	require.NoError(t, err)
	assert.False(t, done)

	for range 2 {
		done, err = c.Resume(context.Background(), "chat-1")
		require.NoError(t, err)
		assert.True(t, done)
	}

	msgs := c.Store.Messages("chat-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Text())
}

func TestResumeStatuses(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		if code == http.StatusForbidden {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			fmt.Fprint(w, `{"error":{"code":"FORBIDDEN","message":"nope"}}`)
			return
		}
		w.WriteHeader(code)
	}))
	defer srv.Close()
	c := New(srv.URL, WithToken("t"))

	_, err := c.Resume(context.Background(), "chat-1")
	assert.ErrorIs(t, err, ErrNotFound)

	status.Store(http.StatusNoContent)
	done, err := c.Resume(context.Background(), "chat-1")
	assert.NoError(t, err)
	assert.True(t, done)

	status.Store(http.StatusUnauthorized)
	_, err = c.Resume(context.Background(), "chat-1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	status.Store(http.StatusForbidden)
	_, err = c.Resume(context.Background(), "chat-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
}

func TestReadSSE(t *testing.T) {
	body := ": keep-alive\r\n" +
		"data: {\"a\":1}\r\n\r\n" +
		"event: ignored\n" +
		"data: line one\n" +
		"data: line two\n\n" +
		"data: [DONE]\n\n" +
		"data: after done\n\n"

	var got []string
	done, err := readSSE(strings.NewReader(body), func(data string) error {
		got = append(got, data)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{`{"a":1}`, "line one\nline two"}, got)

	done, err = readSSE(strings.NewReader("data: x\n\n"), func(string) error { return nil })
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMessageStoreMergeIsIdempotent(t *testing.T) {
	s := NewMessageStore()
	assert.True(t, s.Merge("c", *assistant("m1", "one")))
	assert.False(t, s.Merge("c", *assistant("m1", "changed")))
	assert.True(t, s.Merge("c", *assistant("m2", "two")))

	msgs := s.Messages("c")
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Text())

	// deltas for a message that is already complete are ignored
	s.Apply("c", stream.Event{Type: stream.EventTextDelta, MessageID: "m1", Delta: "!"}, NewCursor())
	assert.Equal(t, "one", s.Messages("c")[0].Text())
}

func TestInterleavedTapsFoldEachDeltaOnce(t *testing.T) {
	s := NewMessageStore()
	r1, r2 := NewCursor(), NewCursor()
	start := stream.Event{Type: stream.EventStart, MessageID: "a1"}
	hel := stream.Event{Type: stream.EventTextDelta, MessageID: "a1", Delta: "Hel"}
	lo := stream.Event{Type: stream.EventTextDelta, MessageID: "a1", Delta: "lo"}
	finish := stream.Event{Type: stream.EventFinish, MessageID: "a1"}

	s.Apply("c", start, r1)
	s.Apply("c", hel, r1)
	s.Apply("c", start, r2)
	s.Apply("c", hel, r2)
	s.Apply("c", lo, r1)
	s.Apply("c", lo, r2)
	s.Apply("c", finish, r2)
	s.Apply("c", finish, r1)

	msgs := s.Messages("c")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Text())
}

func TestConcurrentLiveResumesAssembleOnce(t *testing.T) {
	var calls atomic.Int32
	secondSent := make(chan struct{})
	firstDone := make(chan struct{})
	start := stream.Event{Type: stream.EventStart, MessageID: "a1"}
	hel := stream.Event{Type: stream.EventTextDelta, MessageID: "a1", Delta: "Hel"}
	lo := stream.Event{Type: stream.EventTextDelta, MessageID: "a1", Delta: "lo"}
	finish := stream.Event{Type: stream.EventFinish, MessageID: "a1"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		writeEvents(t, w, false, start, hel)
		if calls.Add(1) == 1 {
			<-secondSent
			writeEvents(t, w, true, lo, finish)
			close(firstDone)
			return
		}
		close(secondSent)
		<-firstDone
		writeEvents(t, w, true, lo, finish)
	}))
	defer srv.Close()

	c := New(srv.URL)
	var wg sync.WaitGroup
	resume := func() {
		defer wg.Done()
		done, err := c.Resume(context.Background(), "chat-1")
		assert.NoError(t, err)
		assert.True(t, done)
	}
	wg.Add(1)
	go resume()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	wg.Add(1)
	go resume()
	wg.Wait()

	msgs := c.Store.Messages("chat-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Text())
}

func TestStaleEventsNeverFollowNewTurn(t *testing.T) {
	c := New("http://127.0.0.1:0")
	tok := c.current("chat-1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cur := NewCursor()
		for i := 0; ; i++ {
			ev := stream.Event{Type: stream.EventAppendMessage, Message: assistant(fmt.Sprintf("s%d", i), "stale")}
			if !c.applyIfCurrent("chat-1", tok, ev, cur) {
				return
			}
		}
	}()
	require.Eventually(t, func() bool { return len(c.Store.Messages("chat-1")) > 10 }, 2*time.Second, time.Millisecond)

	// what Send does before posting the new turn
	c.invalidate("chat-1")
	c.Store.Merge("chat-1", userMsg("u2", "next"))
	wg.Wait()

	msgs := c.Store.Messages("chat-1")
	assert.Equal(t, "u2", msgs[len(msgs)-1].ID)
}
