package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/storage"
	"resumable-chat/backend/pkg/logger"
)

const maxTitleRunes = 80

// ChatService owns chat lifecycle and access checks.
type ChatService struct {
	repos   *repository.Repositories
	janitor *storage.Janitor
	log     *logger.Logger
}

func NewChatService(repos *repository.Repositories, janitor *storage.Janitor, log *logger.Logger) *ChatService {
	return &ChatService{repos: repos, janitor: janitor, log: log}
}

// Get returns the chat if userID may read it: owners always, others only
// when it is public.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	chat, err := s.repos.Chats.Get(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID && chat.Visibility != models.VisibilityPublic {
		return nil, ErrForbidden
	}
	return chat, nil
}

// GetOwned returns the chat only to its owner.
func (s *ChatService) GetOwned(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	chat, err := s.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, ErrForbidden
	}
	return chat, nil
}

func (s *ChatService) List(ctx context.Context, userID string, opts repository.ListChatsOptions) (*models.ChatPage, error) {
	chats, more, err := s.repos.Chats.List(ctx, userID, opts)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return &models.ChatPage{Chats: chats, HasMore: more}, nil
}

func (s *ChatService) Update(ctx context.Context, userID, chatID string, req models.UpdateChatRequest) (*models.Chat, error) {
	if _, err := s.GetOwned(ctx, userID, chatID); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = TrimTitle(*req.Title)
	}
	if req.Archived != nil {
		fields["archived"] = *req.Archived
	}
	if req.Visibility != nil {
		switch *req.Visibility {
		case models.VisibilityPrivate, models.VisibilityPublic:
			fields["visibility"] = *req.Visibility
		default:
			return nil, ErrInvalidMessage
		}
	}
	if len(fields) > 0 {
		if err := s.repos.Chats.Update(ctx, chatID, fields); err != nil {
			return nil, err
		}
	}
	return s.repos.Chats.Get(ctx, chatID)
}

// Delete removes the chat with its messages, streams and attachments and
// schedules one storage cleanup for the attachment keys.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	if _, err := s.GetOwned(ctx, userID, chatID); err != nil {
		return err
	}

	var keys []string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		if keys, err = tx.Attachments.DeleteByChats(ctx, chatID); err != nil {
			return err
		}
		if err := tx.Messages.DeleteByChats(ctx, chatID); err != nil {
			return err
		}
		if err := tx.Streams.DeleteByChats(ctx, chatID); err != nil {
			return err
		}
		return tx.Chats.Delete(ctx, chatID)
	})
	if err != nil {
		return err
	}

	s.janitor.Schedule(keys)
	s.log.Info("chat deleted", "chat_id", chatID, "attachments", len(keys))
	return nil
}

// TrimTitle collapses whitespace and caps the title length.
func TrimTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxTitleRunes]))
}

// TitleFromMessage derives a chat title from the first user message.
func TitleFromMessage(m *models.Message) string {
	if t := TrimTitle(m.Text()); t != "" {
		return t
	}
	return "New chat"
}
