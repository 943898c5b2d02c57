package repository

import (
	"context"

	"resumable-chat/backend/internal/models"

	"gorm.io/gorm"
)

type AttachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) error
	Get(ctx context.Context, id string) (*models.Attachment, error)
	// Link attaches the caller's unlinked attachments to a message.
	Link(ctx context.Context, userID, chatID, messageID string, ids []string) error
	// DeleteByChats removes attachments of the chats and returns their storage keys.
	DeleteByChats(ctx context.Context, chatIDs ...string) ([]string, error)
	// DeleteByMessages removes attachments of the messages and returns their storage keys.
	DeleteByMessages(ctx context.Context, messageIDs ...string) ([]string, error)
	// DeleteByUser removes every attachment the user uploaded, linked or not.
	DeleteByUser(ctx context.Context, userID string) ([]string, error)
}

type GormAttachmentRepository struct {
	db *gorm.DB
}

func NewGormAttachmentRepository(db *gorm.DB) *GormAttachmentRepository {
	return &GormAttachmentRepository{db: db}
}

func (r *GormAttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *GormAttachmentRepository) Get(ctx context.Context, id string) (*models.Attachment, error) {
	var a models.Attachment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *GormAttachmentRepository) Link(ctx context.Context, userID, chatID, messageID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Where("id IN ? AND user_id = ? AND (message_id = '' OR message_id IS NULL)", ids, userID).
		Updates(map[string]any{"chat_id": chatID, "message_id": messageID}).Error
}

func (r *GormAttachmentRepository) deleteWhere(ctx context.Context, query string, args ...any) ([]string, error) {
	var keys []string
	if err := r.db.WithContext(ctx).Model(&models.Attachment{}).Where(query, args...).Pluck("storage_key", &keys).Error; err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where(query, args...).Delete(&models.Attachment{}).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *GormAttachmentRepository) DeleteByChats(ctx context.Context, chatIDs ...string) ([]string, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}
	return r.deleteWhere(ctx, "chat_id IN ?", chatIDs)
}

func (r *GormAttachmentRepository) DeleteByMessages(ctx context.Context, messageIDs ...string) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	return r.deleteWhere(ctx, "message_id IN ?", messageIDs)
}

func (r *GormAttachmentRepository) DeleteByUser(ctx context.Context, userID string) ([]string, error) {
	return r.deleteWhere(ctx, "user_id = ?", userID)
}
