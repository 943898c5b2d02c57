package api

import (
	"net/http"
	"strings"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/service"
	"resumable-chat/backend/internal/stream"
	"resumable-chat/backend/internal/ws"

	"github.com/gin-gonic/gin"
)

// GenerateHandler starts generations and lets clients reattach to them.
type GenerateHandler struct {
	generation *service.GenerationService
	resume     *service.ResumeService
	// resumable gates the resume endpoints. When off they answer 204.
	resumable bool
}

func NewGenerateHandler(generation *service.GenerationService, resume *service.ResumeService, resumable bool) *GenerateHandler {
	return &GenerateHandler{generation: generation, resume: resume, resumable: resumable}
}

// Generate saves the user's message and streams the assistant reply.
func (h *GenerateHandler) Generate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}

	started, err := h.generation.Start(c.Request.Context(), user, req)
	if err != nil {
		fail(c, err)
		return
	}
	writeSSE(c, started.ChatID, started.Events)
}

// Resume reattaches to the chat's latest stream, or replays the last
// assistant message when it finished moments ago.
func (h *GenerateHandler) Resume(c *gin.Context) {
	chatID, res, ok := h.prepareResume(c)
	if !ok {
		return
	}
	writeSSE(c, chatID, res.Events)
}

// prepareResume applies the checks shared by the SSE and WebSocket resume
// endpoints, in order: feature flag, chat id, authentication.
func (h *GenerateHandler) prepareResume(c *gin.Context) (string, *service.Resumed, bool) {
	if !h.resumable {
		stream.ResumeOutcomes.WithLabelValues("disabled").Inc()
		c.Status(http.StatusNoContent)
		return "", nil, false
	}

	chatID := strings.TrimSpace(c.Param("chatId"))
	if chatID == "" {
		badRequest(c, "chatId is required", nil)
		return "", nil, false
	}

	user, ok := requireUser(c)
	if !ok {
		return "", nil, false
	}

	res, err := h.resume.Resume(c.Request.Context(), user.ID, chatID)
	if err != nil {
		fail(c, err)
		return "", nil, false
	}
	return chatID, res, true
}

// ResumeWS is Resume over a WebSocket. Pre-upgrade failures are plain HTTP
// responses with the same status codes as Resume.
func (h *GenerateHandler) ResumeWS(relay *ws.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID, res, ok := h.prepareResume(c)
		if !ok {
			return
		}
		relay.Serve(c, chatID, res.Events)
	}
}
