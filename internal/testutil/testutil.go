// Package testutil provides an isolated SQLite database and seed helpers for
// package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"resumable-chat/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB opens a fresh in-memory database with every model migrated. The
// database lives as long as the test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and
	// serialises writers
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func SeedUser(tb testing.TB, db *gorm.DB, email string) *models.User {
	tb.Helper()
	hash, err := models.HashPassword("password123")
	if err != nil {
		tb.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test",
		PasswordHash: hash,
		Type:         models.UserTypeRegular,
	}
	if err := db.WithContext(context.Background()).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedChat(tb testing.TB, db *gorm.DB, userID string) *models.Chat {
	tb.Helper()
	c := &models.Chat{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      "chat",
		Visibility: models.VisibilityPrivate,
		Status:     models.ChatStatusIdle,
	}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed chat: %v", err)
	}
	return c
}

func SeedMessage(tb testing.TB, db *gorm.DB, chat *models.Chat, role, text string, createdAt time.Time) *models.Message {
	tb.Helper()
	m := &models.Message{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		UserID:    chat.UserID,
		Role:      role,
		Parts:     datatypes.NewJSONSlice([]models.Part{{Type: models.PartText, Text: text}}),
		CreatedAt: createdAt.UTC(),
	}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func SeedStream(tb testing.TB, db *gorm.DB, chatID string, createdAt time.Time) *models.Stream {
	tb.Helper()
	s := &models.Stream{ID: uuid.Must(uuid.NewV7()).String(), ChatID: chatID, CreatedAt: createdAt.UTC()}
	if err := db.Create(s).Error; err != nil {
		tb.Fatalf("seed stream: %v", err)
	}
	return s
}

func SeedAttachment(tb testing.TB, db *gorm.DB, userID, chatID, messageID, key string) *models.Attachment {
	tb.Helper()
	a := &models.Attachment{
		ID:         uuid.NewString(),
		UserID:     userID,
		ChatID:     chatID,
		MessageID:  messageID,
		StorageKey: key,
		URL:        "https://files.test/" + key,
		MimeType:   "image/png",
		Size:       3,
	}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed attachment: %v", err)
	}
	return a
}
