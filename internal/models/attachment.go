package models

import "time"

// Attachment is an uploaded file. MessageID stays empty until a saved
// message references it.
type Attachment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"index;size:36;not null" json:"user_id"`
	ChatID     string    `gorm:"index;size:64" json:"chat_id,omitempty"`
	MessageID  string    `gorm:"index;size:64" json:"message_id,omitempty"`
	StorageKey string    `gorm:"not null" json:"-"`
	URL        string    `json:"url"`
	Name       string    `json:"name"`
	MimeType   string    `gorm:"size:128" json:"mime_type"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &Chat{}, &Message{}, &Stream{}, &Attachment{}}
}
