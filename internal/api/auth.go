package api

import (
	"net/http"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/service"
	"resumable-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users *service.UserService
}

func NewAuthHandler(users *service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Signup registers a regular account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}

	resp, err := h.users.Signup(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}

	resp, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("user logged in", "user_id", resp.User.ID)
	c.JSON(http.StatusOK, resp)
}

// Guest issues a session for a fresh anonymous account.
func (h *AuthHandler) Guest(c *gin.Context) {
	resp, err := h.users.Guest(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), caller.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteMe removes the caller's account and everything it owns.
func (h *AuthHandler) DeleteMe(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), caller.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
