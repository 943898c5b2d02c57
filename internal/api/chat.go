package api

import (
	"net/http"
	"strconv"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves chat history and per-chat messages.
type ChatHandler struct {
	chats    *service.ChatService
	messages *service.MessageService
}

func NewChatHandler(chats *service.ChatService, messages *service.MessageService) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages}
}

// List pages through the caller's chats, newest first.
func (h *ChatHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	opts := repository.ListChatsOptions{
		StartingAfter: c.Query("starting_after"),
		EndingBefore:  c.Query("ending_before"),
	}
	if opts.StartingAfter != "" && opts.EndingBefore != "" {
		badRequest(c, "Only one of starting_after or ending_before may be provided", nil)
		return
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer", err)
			return
		}
		opts.Limit = n
	}
	if v := c.Query("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "archived must be a boolean", err)
			return
		}
		opts.IncludeArchived = archived
	}

	page, err := h.chats.List(c.Request.Context(), user.ID, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	chat, err := h.chats.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}
	chat, err := h.chats.Update(c.Request.Context(), user.ID, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.chats.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Messages lists a chat's messages in creation order.
func (h *ChatHandler) Messages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	msgs, err := h.messages.List(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// DeleteTrailing removes a message and everything after it.
func (h *ChatHandler) DeleteTrailing(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	ids, err := h.messages.DeleteTrailing(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ids})
}
