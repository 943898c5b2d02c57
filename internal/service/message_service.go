package service

import (
	"context"
	"errors"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/storage"
	"resumable-chat/backend/pkg/logger"
)

type MessageService struct {
	repos   *repository.Repositories
	chats   *ChatService
	janitor *storage.Janitor
	log     *logger.Logger
}

func NewMessageService(repos *repository.Repositories, chats *ChatService, janitor *storage.Janitor, log *logger.Logger) *MessageService {
	return &MessageService{repos: repos, chats: chats, janitor: janitor, log: log}
}

// List returns a readable chat's messages in creation order.
func (s *MessageService) List(ctx context.Context, userID, chatID string) ([]models.Message, error) {
	if _, err := s.chats.Get(ctx, userID, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.repos.Messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// DeleteTrailing removes the message and everything after it in its chat,
// together with the attachments of the removed messages. It returns the IDs
// of the removed messages.
func (s *MessageService) DeleteTrailing(ctx context.Context, userID, messageID string) ([]string, error) {
	msg, err := s.repos.Messages.Get(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.chats.GetOwned(ctx, userID, msg.ChatID); err != nil {
		return nil, err
	}

	var ids, keys []string
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		if ids, err = tx.Messages.DeleteFrom(ctx, msg.ChatID, msg.CreatedAt); err != nil {
			return err
		}
		keys, err = tx.Attachments.DeleteByMessages(ctx, ids...)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.janitor.Schedule(keys)
	return ids, nil
}
