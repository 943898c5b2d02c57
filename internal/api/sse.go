package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"resumable-chat/backend/internal/stream"
	"resumable-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ChatIDHeader tells the client which chat a stream belongs to.
const ChatIDHeader = "X-Chat-Id"

// doneFrame terminates a stream that ended normally.
const doneFrame = "[DONE]"

// writeSSE relays src to the client as "data: <json>" frames. A stream that
// ends cleanly is terminated with a [DONE] frame; a stream that breaks off
// is simply cut so the client knows to resume.
func writeSSE(c *gin.Context, chatID string, src stream.Source) {
	defer src.Close()

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(ChatIDHeader, chatID)
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	log := logger.FromGin(c).WithChatID(chatID)

	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintf(c.Writer, "data: %s\n\n", doneFrame)
			c.Writer.Flush()
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("stream ended early", "error", err.Error())
			}
			return
		}
		data, err := ev.Marshal()
		if err != nil {
			log.LogError(err, "failed to encode stream event")
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return
		}
		c.Writer.Flush()
	}
}
