// Package api holds the gin handlers of the chat backend.
package api

import (
	stderrors "errors"

	"resumable-chat/backend/internal/service"
	"resumable-chat/backend/pkg/errors"
	"resumable-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// toAppError maps service sentinels to their HTTP rendering.
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, service.ErrUserAlreadyExists):
		return errors.NewConflictError("USER_EXISTS", "A user with this email already exists")
	case stderrors.Is(err, service.ErrInvalidCredentials):
		return errors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password")
	case stderrors.Is(err, service.ErrUserNotFound):
		return errors.NewNotFoundError("USER_NOT_FOUND", "User not found")
	case stderrors.Is(err, service.ErrChatNotFound):
		return errors.NewNotFoundError("CHAT_NOT_FOUND", "Chat not found")
	case stderrors.Is(err, service.ErrMessageNotFound):
		return errors.NewNotFoundError("MESSAGE_NOT_FOUND", "Message not found")
	case stderrors.Is(err, service.ErrNoStreams):
		return errors.NewNotFoundError("STREAM_NOT_FOUND", "No streams found for this chat")
	case stderrors.Is(err, service.ErrForbidden):
		return errors.NewForbiddenError("FORBIDDEN", "This chat belongs to another user")
	case stderrors.Is(err, service.ErrInvalidMessage):
		return errors.NewBadRequestError("INVALID_REQUEST", "Invalid request")
	case stderrors.Is(err, service.ErrRateLimited):
		return errors.NewRateLimitError("RATE_LIMITED", "You have exceeded your maximum number of messages for the day")
	case stderrors.Is(err, service.ErrUnsupportedFileType):
		return errors.NewBadRequestError("UNSUPPORTED_FILE_TYPE", "File type is not allowed")
	case stderrors.Is(err, service.ErrFileTooLarge):
		return errors.NewPayloadTooLargeError("FILE_TOO_LARGE", "File is too large")
	default:
		return errors.NewInternalServerError("SERVER_ERROR", "The server encountered an unexpected error").Wrap(err)
	}
}

func fail(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
	c.Abort()
}

func badRequest(c *gin.Context, message string, cause error) {
	appErr := errors.NewBadRequestError("INVALID_REQUEST", message)
	if cause != nil {
		appErr = appErr.WithDetails(cause.Error())
	}
	fail(c, appErr)
}

// requireUser aborts with 401 when the request is anonymous.
func requireUser(c *gin.Context) (*middleware.AuthUser, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		fail(c, errors.NewUnauthorizedError("UNAUTHORIZED", "Authentication required"))
		return nil, false
	}
	return user, true
}
