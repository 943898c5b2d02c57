package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"resumable-chat/backend/internal/llm"
	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/storage"
	"resumable-chat/backend/internal/stream"
	"resumable-chat/backend/internal/testutil"
	"resumable-chat/backend/pkg/config"
	"resumable-chat/backend/pkg/di"
	"resumable-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router    *Router
	container *di.Container
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Load()
	cfg.JWT.Secret = "test-secret"
	cfg.Server.OpenAPISpec = ""
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.Streams.Enabled = true
	cfg.Streams.IdleTimeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	container, err := di.New(cfg, testutil.DB(t), logger.Discard(), di.Deps{
		Store:    storage.NewMemoryStore("https://files.test"),
		Provider: llm.NewEcho(0),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := New(container)
	r.SetupRoutes(ctx)
	return &testServer{router: r, container: container}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) signup(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email": email, "password": "correct-horse", "name": "Tester",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (s *testServer) guest(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/guest", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func generateBody(chatID, text string) gin.H {
	return gin.H{
		"id": chatID,
		"message": gin.H{
			"id":    uuid.NewString(),
			"role":  "user",
			"parts": []gin.H{{"type": "text", "text": text}},
		},
	}
}

// frames splits an SSE body into its data payloads.
func frames(t *testing.T, body string) (events []stream.Event, done bool) {
	t.Helper()
	for _, chunk := range strings.Split(body, "\n\n") {
		data, ok := strings.CutPrefix(strings.TrimSpace(chunk), "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			done = true
			continue
		}
		ev, err := stream.UnmarshalEvent([]byte(data))
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events, done
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.container.Health.RunChecks(context.Background())

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database"`)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.signup(t, "flow@test.dev")

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "flow@test.dev", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "flow@test.dev", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "flow@test.dev", "password": "correct-horse"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "flow@test.dev")

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateThenResumeReplaysOnce(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.guest(t)
	chatID := uuid.NewString()

	w := s.do(t, http.MethodPost, "/api/v1/generate", token, generateBody(chatID, "stream me please"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, chatID, w.Header().Get("X-Chat-Id"))
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events, done := frames(t, w.Body.String())
	require.True(t, done)
	require.NotEmpty(t, events)
	assert.Equal(t, stream.EventStart, events[0].Type)
	assert.Equal(t, stream.EventFinish, events[len(events)-1].Type)
	assistantID := events[0].MessageID

	// the producer has finished, so a reconnect gets the persisted reply
	w = s.do(t, http.MethodGet, "/api/v1/generate/"+chatID+"/resume", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	events, done = frames(t, w.Body.String())
	assert.True(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventAppendMessage, events[0].Type)
	assert.Equal(t, assistantID, events[0].Message.ID)
	assert.Equal(t, "stream me please", events[0].Message.Text())
}

func TestResumeStatusCodes(t *testing.T) {
	s := newTestServer(t, nil)
	owner := s.signup(t, "owner@test.dev")
	other := s.signup(t, "other@test.dev")

	chatID := uuid.NewString()
	w := s.do(t, http.MethodPost, "/api/v1/generate", owner, generateBody(chatID, "hi"))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/generate/%20/resume", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/generate/"+chatID+"/resume", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/generate/"+chatID+"/resume", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/generate/"+uuid.NewString()+"/resume", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/messages/nope/trailing", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResumeDisabledAnswersNoContent(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Streams.Enabled = false })

	w := s.do(t, http.MethodGet, "/api/v1/generate/"+uuid.NewString()+"/resume", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestResumeWithoutStreamsIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.signup(t, "nostream@test.dev")

	var me models.User
	w := s.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	chat := testutil.SeedChat(t, s.container.DB, me.ID)

	w = s.do(t, http.MethodGet, "/api/v1/generate/"+chat.ID+"/resume", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "STREAM_NOT_FOUND")
}

func TestChatEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.signup(t, "chats@test.dev")

	chatID := uuid.NewString()
	w := s.do(t, http.MethodPost, "/api/v1/generate", token, generateBody(chatID, "first question"))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/chats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.ChatPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Chats, 1)
	assert.Equal(t, "first question", page.Chats[0].Title)
	assert.False(t, page.HasMore)

	w = s.do(t, http.MethodGet, "/api/v1/chats?starting_after=a&ending_before=b", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/chats/"+chatID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs.Messages, 2)

	w = s.do(t, http.MethodPatch, "/api/v1/chats/"+chatID, token, gin.H{"archived": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/chats", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Empty(t, page.Chats)

	w = s.do(t, http.MethodGet, "/api/v1/chats?archived=true", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Chats, 1)

	w = s.do(t, http.MethodDelete, "/api/v1/chats/"+chatID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/chats/"+chatID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateEntitlementLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Entitlements.GuestMessagesPerDay = 1 })
	token := s.guest(t)
	chatID := uuid.NewString()

	w := s.do(t, http.MethodPost, "/api/v1/generate", token, generateBody(chatID, "one"))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/generate", token, generateBody(chatID, "two"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestUploadRequiresRegularUser(t *testing.T) {
	s := newTestServer(t, nil)

	upload := func(token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="pic.png"`)
		hdr.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, _ = part.Write([]byte("\x89PNG fake"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.router.Engine.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, upload(s.guest(t)).Code)

	w := upload(s.signup(t, "files@test.dev"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a models.Attachment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, "image/png", a.MimeType)
	assert.True(t, strings.HasPrefix(a.URL, "https://files.test/"))
}

func TestDeleteMe(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.signup(t, "bye@test.dev")

	w := s.do(t, http.MethodPost, "/api/v1/generate", token, generateBody(uuid.NewString(), "hi"))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	s.container.Janitor.Wait()

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
