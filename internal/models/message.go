package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types.
const (
	PartText       = "text"
	PartToolCall   = "tool-call"
	PartToolResult = "tool-result"
	PartImage      = "image"
	PartFile       = "file"
)

// Part is one element of a message body.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`

	AttachmentID string `json:"attachmentId,omitempty"`
	URL          string `json:"url,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Message is a single turn. IDs are generated by the client so that
// re-sending the same message is an idempotent upsert.
type Message struct {
	ID        string                    `gorm:"primaryKey;size:64" json:"id"`
	ChatID    string                    `gorm:"index:idx_messages_chat_created,priority:1;size:64;not null" json:"chat_id"`
	UserID    string                    `gorm:"size:36;not null" json:"user_id"`
	Role      string                    `gorm:"size:16;not null" json:"role"`
	Parts     datatypes.JSONSlice[Part] `json:"parts"`
	CreatedAt time.Time                 `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
}

// Text concatenates the text parts.
func (m *Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// AttachmentIDs lists attachments referenced by file and image parts.
func (m *Message) AttachmentIDs() []string {
	var ids []string
	for _, p := range m.Parts {
		if (p.Type == PartFile || p.Type == PartImage) && p.AttachmentID != "" {
			ids = append(ids, p.AttachmentID)
		}
	}
	return ids
}
