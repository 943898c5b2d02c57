package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryWithLogger(), ErrorHandler())
	return r
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	r := setupRouter()
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("CHAT_NOT_FOUND", "Chat not found"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CHAT_NOT_FOUND", body["error"]["code"])
}

func TestErrorHandlerHidesPlainErrors(t *testing.T) {
	r := setupRouter()
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("pq: connection refused"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRecovery(t *testing.T) {
	r := setupRouter()
	r.GET("/panic", func(c *gin.Context) { panic("nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_ERROR")
}

func TestFromErrorUnwraps(t *testing.T) {
	inner := NewForbiddenError("FORBIDDEN", "no")
	wrapped := fmt.Errorf("loading chat: %w", inner)

	assert.Equal(t, http.StatusForbidden, GetStatusCode(wrapped))
	assert.True(t, Is(wrapped, inner))
}
