package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/storage"
	"resumable-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

// Upload is a file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type AttachmentService struct {
	repos        *repository.Repositories
	store        storage.Store
	maxSize      int64
	allowedTypes []string
	log          *logger.Logger
}

func NewAttachmentService(repos *repository.Repositories, store storage.Store, maxSize int64, allowedTypes []string, log *logger.Logger) *AttachmentService {
	return &AttachmentService{repos: repos, store: store, maxSize: maxSize, allowedTypes: allowedTypes, log: log}
}

// Upload stores the file under the user's prefix and records an unlinked
// attachment. The attachment is linked to a message when one references it.
func (s *AttachmentService) Upload(ctx context.Context, userID string, up Upload) (*models.Attachment, error) {
	contentType := strings.TrimSpace(strings.Split(up.ContentType, ";")[0])
	if !slices.Contains(s.allowedTypes, contentType) {
		return nil, ErrUnsupportedFileType
	}
	if up.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	id := uuid.NewString()
	key := userID + "/" + id + strings.ToLower(path.Ext(up.Name))

	// the declared size is advisory; never read past the cap
	body := io.LimitReader(up.Body, s.maxSize+1)
	url, err := s.store.Put(ctx, key, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	a := &models.Attachment{
		ID:         id,
		UserID:     userID,
		StorageKey: key,
		URL:        url,
		Name:       path.Base(up.Name),
		MimeType:   contentType,
		Size:       up.Size,
	}
	if err := s.repos.Attachments.Create(ctx, a); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), []string{key}); delErr != nil {
			s.log.LogError(delErr, "failed to remove orphaned upload", "key", key)
		}
		return nil, err
	}
	return a, nil
}
