package stream

import (
	"context"
	"fmt"
	"time"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/repository"

	"github.com/google/uuid"
)

// Registry is the per-chat, append-only log of stream IDs.
type Registry struct {
	streams repository.StreamRepository
	now     func() time.Time
}

func NewRegistry(streams repository.StreamRepository) *Registry {
	return &Registry{streams: streams, now: time.Now}
}

// NewID returns a time-ordered stream ID.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Append records that streamID was started for chatID.
func (r *Registry) Append(ctx context.Context, chatID, streamID string) error {
	err := r.streams.Create(ctx, &models.Stream{ID: streamID, ChatID: chatID, CreatedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("append stream %s to chat %s: %w", streamID, chatID, err)
	}
	return nil
}

// List returns the chat's stream IDs, oldest first.
func (r *Registry) List(ctx context.Context, chatID string) ([]string, error) {
	return r.streams.IDsByChat(ctx, chatID)
}

// Latest returns the most recent stream ID, if any.
func (r *Registry) Latest(ctx context.Context, chatID string) (string, bool, error) {
	ids, err := r.List(ctx, chatID)
	if err != nil || len(ids) == 0 {
		return "", false, err
	}
	return ids[len(ids)-1], true, nil
}
