package service

import "errors"

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")

	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNoStreams       = errors.New("chat has no streams")
	ErrForbidden       = errors.New("chat belongs to another user")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrRateLimited     = errors.New("daily message limit reached")

	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)
