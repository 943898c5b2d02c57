package repository

import (
	"context"

	"resumable-chat/backend/internal/models"

	"gorm.io/gorm"
)

// ListChatsOptions pages through a user's chats, newest first. StartingAfter
// and EndingBefore are chat IDs; at most one of them may be set.
type ListChatsOptions struct {
	Limit           int
	StartingAfter   string
	EndingBefore    string
	IncludeArchived bool
}

type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	Get(ctx context.Context, id string) (*models.Chat, error)
	List(ctx context.Context, userID string, opts ListChatsOptions) ([]models.Chat, bool, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	SetStatus(ctx context.Context, id, status string) error
	IDsByUser(ctx context.Context, userID string) ([]string, error)
	Delete(ctx context.Context, ids ...string) error
}

type GormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

func (r *GormChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if chat.Visibility == "" {
		chat.Visibility = models.VisibilityPrivate
	}
	if chat.Status == "" {
		chat.Status = models.ChatStatusIdle
	}
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *GormChatRepository) Get(ctx context.Context, id string) (*models.Chat, error) {
	var c models.Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *GormChatRepository) List(ctx context.Context, userID string, opts ListChatsOptions) ([]models.Chat, bool, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := r.db.WithContext(ctx).Model(&models.Chat{}).Where("user_id = ?", userID)
	if !opts.IncludeArchived {
		q = q.Where("archived = ?", false)
	}

	cursor, op := opts.StartingAfter, ">"
	if cursor == "" {
		cursor, op = opts.EndingBefore, "<"
	}
	if cursor != "" {
		anchor, err := r.Get(ctx, cursor)
		if err != nil {
			return nil, false, err
		}
		q = q.Where("created_at "+op+" ?", anchor.CreatedAt)
	}

	var chats []models.Chat
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&chats).Error; err != nil {
		return nil, false, err
	}
	hasMore := len(chats) > limit
	if hasMore {
		chats = chats[:limit]
	}
	return chats, hasMore, nil
}

func (r *GormChatRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Chat{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormChatRepository) SetStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&models.Chat{}).Where("id = ?", id).Update("status", status).Error
}

func (r *GormChatRepository) IDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Chat{}).Where("user_id = ?", userID).Pluck("id", &ids).Error
	return ids, err
}

func (r *GormChatRepository) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Chat{}).Error
}
