package repository

import (
	"context"

	"resumable-chat/backend/internal/models"

	"gorm.io/gorm"
)

// StreamRepository is the persistence behind the per-chat stream registry.
// Rows are never updated.
type StreamRepository interface {
	Create(ctx context.Context, s *models.Stream) error
	// IDsByChat returns stream IDs oldest first.
	IDsByChat(ctx context.Context, chatID string) ([]string, error)
	DeleteByChats(ctx context.Context, chatIDs ...string) error
}

type GormStreamRepository struct {
	db *gorm.DB
}

func NewGormStreamRepository(db *gorm.DB) *GormStreamRepository {
	return &GormStreamRepository{db: db}
}

func (r *GormStreamRepository) Create(ctx context.Context, s *models.Stream) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *GormStreamRepository) IDsByChat(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Stream{}).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *GormStreamRepository) DeleteByChats(ctx context.Context, chatIDs ...string) error {
	if len(chatIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("chat_id IN ?", chatIDs).Delete(&models.Stream{}).Error
}
