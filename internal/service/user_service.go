package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/storage"
	"resumable-chat/backend/pkg/jwt"
	"resumable-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

// UserService handles accounts and sessions.
type UserService struct {
	repos   *repository.Repositories
	tokens  *jwt.Service
	janitor *storage.Janitor
	log     *logger.Logger
}

func NewUserService(repos *repository.Repositories, tokens *jwt.Service, janitor *storage.Janitor, log *logger.Logger) *UserService {
	return &UserService{repos: repos, tokens: tokens, janitor: janitor, log: log}
}

func (s *UserService) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	if _, err := s.repos.Users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Type:         models.UserTypeRegular,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user signed up", "user_id", user.ID)
	return s.session(user)
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repos.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Type == models.UserTypeGuest || !models.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// Guest creates an anonymous account with a throwaway identity.
func (s *UserService) Guest(ctx context.Context) (*models.AuthResponse, error) {
	id := uuid.NewString()
	user := &models.User{
		ID:    id,
		Email: "guest-" + id + "@guest.local",
		Name:  "Guest",
		Type:  models.UserTypeGuest,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repos.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// Delete removes the user with every chat, message, stream and attachment
// they own, then schedules one storage cleanup for all attachment keys.
func (s *UserService) Delete(ctx context.Context, id string) error {
	var keys []string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Users.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		chatIDs, err := tx.Chats.IDsByUser(ctx, id)
		if err != nil {
			return err
		}
		chatKeys, err := tx.Attachments.DeleteByChats(ctx, chatIDs...)
		if err != nil {
			return err
		}
		userKeys, err := tx.Attachments.DeleteByUser(ctx, id)
		if err != nil {
			return err
		}
		keys = append(chatKeys, userKeys...)

		if err := tx.Messages.DeleteByChats(ctx, chatIDs...); err != nil {
			return err
		}
		if err := tx.Streams.DeleteByChats(ctx, chatIDs...); err != nil {
			return err
		}
		if err := tx.Chats.Delete(ctx, chatIDs...); err != nil {
			return err
		}
		return tx.Users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.janitor.Schedule(keys)
	s.log.Info("user deleted", "user_id", id, "attachments", len(keys))
	return nil
}

func (s *UserService) session(user *models.User) (*models.AuthResponse, error) {
	token, exp, err := s.tokens.GenerateToken(jwt.Subject{
		UserID:        user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Type:          user.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.AuthResponse{Token: token, ExpiresAt: exp, User: *user}, nil
}
