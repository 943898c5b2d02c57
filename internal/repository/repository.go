// Package repository holds the gorm-backed persistence for chats, messages,
// streams, attachments and users.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Repositories groups every repository over the same connection or transaction.
type Repositories struct {
	db          *gorm.DB
	Users       UserRepository
	Chats       ChatRepository
	Messages    MessageRepository
	Streams     StreamRepository
	Attachments AttachmentRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Users:       NewGormUserRepository(db),
		Chats:       NewGormChatRepository(db),
		Messages:    NewGormMessageRepository(db),
		Streams:     NewGormStreamRepository(db),
		Attachments: NewGormAttachmentRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// DB exposes the underlying connection for health checks and migrations.
func (r *Repositories) DB() *gorm.DB { return r.db }
