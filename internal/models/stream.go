package models

import "time"

// Stream records that a generation stream was started for a chat. Rows are
// append-only and only removed together with their chat.
type Stream struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	ChatID    string    `gorm:"index:idx_streams_chat_created,priority:1;size:64;not null" json:"chat_id"`
	CreatedAt time.Time `gorm:"index:idx_streams_chat_created,priority:2" json:"created_at"`
}
