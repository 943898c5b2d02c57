package repository

import (
	"context"
	"time"

	"resumable-chat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	// Upsert inserts messages whose IDs are unknown and ignores the rest.
	// It returns how many rows were actually inserted.
	Upsert(ctx context.Context, msgs ...*models.Message) (int64, error)
	Get(ctx context.Context, id string) (*models.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]models.Message, error)
	// Latest returns the most recently created message of a chat.
	Latest(ctx context.Context, chatID string) (*models.Message, error)
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error)
	// DeleteFrom removes the chat's messages created at or after ts and
	// returns their IDs.
	DeleteFrom(ctx context.Context, chatID string, ts time.Time) ([]string, error)
	DeleteByChats(ctx context.Context, chatIDs ...string) error
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Upsert(ctx context.Context, msgs ...*models.Message) (int64, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(msgs)
	return res.RowsAffected, res.Error
}

func (r *GormMessageRepository) Get(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *GormMessageRepository) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	var out []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *GormMessageRepository) Latest(ctx context.Context, chatID string) (*models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("id DESC").
		Take(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *GormMessageRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("user_id = ? AND role = ? AND created_at >= ?", userID, models.RoleUser, since).
		Count(&n).Error
	return n, err
}

func (r *GormMessageRepository) DeleteFrom(ctx context.Context, chatID string, ts time.Time) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&models.Message{}).Where("chat_id = ? AND created_at >= ?", chatID, ts)
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormMessageRepository) DeleteByChats(ctx context.Context, chatIDs ...string) error {
	if len(chatIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("chat_id IN ?", chatIDs).Delete(&models.Message{}).Error
}
