package models

import "time"

// Chat visibility.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Chat generation status.
const (
	ChatStatusIdle       = "idle"
	ChatStatusGenerating = "generating"
	ChatStatusFailed     = "failed"
)

// Chat is a conversation. Its ID is chosen by the client.
type Chat struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	UserID     string    `gorm:"index;size:36;not null" json:"user_id"`
	Title      string    `json:"title"`
	Visibility string    `gorm:"size:16;not null;default:private" json:"visibility"`
	Archived   bool      `gorm:"not null;default:false" json:"archived"`
	Status     string    `gorm:"size:16;not null;default:idle" json:"status"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UpdateChatRequest is the body of PATCH /chats/:id. Nil fields are left alone.
type UpdateChatRequest struct {
	Title      *string `json:"title,omitempty"`
	Archived   *bool   `json:"archived,omitempty"`
	Visibility *string `json:"visibility,omitempty"`
}

// ChatPage is one page of the chat history list.
type ChatPage struct {
	Chats   []Chat `json:"chats"`
	HasMore bool   `json:"has_more"`
}
