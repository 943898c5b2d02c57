package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resumable-chat/backend/internal/llm"
	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/stream"
	"resumable-chat/backend/pkg/logger"
	"resumable-chat/backend/pkg/middleware"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
)

var tracer = otel.Tracer("resumable-chat/service")

// GenerationConfig tunes the generation loop.
type GenerationConfig struct {
	SystemPrompt string
	Timeout      time.Duration
	// Daily message caps by user type. Zero disables the cap.
	GuestPerDay   int
	RegularPerDay int
}

// GenerationService saves the user's turn and produces the assistant reply
// into a resumable stream.
type GenerationService struct {
	repos     *repository.Repositories
	registry  *stream.Registry
	transport stream.Transport
	provider  llm.Provider
	cfg       GenerationConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewGenerationService(
	repos *repository.Repositories,
	registry *stream.Registry,
	transport stream.Transport,
	provider llm.Provider,
	cfg GenerationConfig,
	log *logger.Logger,
) *GenerationService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &GenerationService{
		repos:     repos,
		registry:  registry,
		transport: transport,
		provider:  provider,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Started describes a generation that is now running in the background.
type Started struct {
	ChatID   string
	StreamID string
	// Events follows the stream from its first event. The caller owns it.
	Events stream.Source
}

// Start validates and persists the user message, registers a new stream and
// launches the producer. The producer outlives ctx; only the returned tap is
// bound to the caller.
func (s *GenerationService) Start(ctx context.Context, user *middleware.AuthUser, req models.GenerateRequest) (*Started, error) {
	ctx, span := tracer.Start(ctx, "generation.start")
	defer span.End()
	span.SetAttributes(attribute.String("chat.id", req.ChatID))

	msg := req.Message
	if req.ChatID == "" || msg.ID == "" || msg.Role != models.RoleUser || len(msg.Parts) == 0 {
		return nil, ErrInvalidMessage
	}
	if err := s.checkEntitlement(ctx, user); err != nil {
		return nil, err
	}

	chat, err := s.ensureChat(ctx, user.ID, req)
	if err != nil {
		return nil, err
	}

	msg.ChatID = chat.ID
	msg.UserID = user.ID
	msg.CreatedAt = s.now().UTC()
	if _, err := s.repos.Messages.Upsert(ctx, &msg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	if ids := msg.AttachmentIDs(); len(ids) > 0 {
		if err := s.repos.Attachments.Link(ctx, user.ID, chat.ID, msg.ID, ids); err != nil {
			return nil, fmt.Errorf("link attachments: %w", err)
		}
	}

	history, err := s.repos.Messages.ListByChat(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	streamID := stream.NewID()
	if err := s.registry.Append(ctx, chat.ID, streamID); err != nil {
		return nil, err
	}
	sink, err := s.transport.Produce(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	events, err := s.transport.Tap(ctx, streamID)
	if err != nil {
		_ = sink.Close(ctx)
		return nil, fmt.Errorf("tap stream: %w", err)
	}

	stream.StreamsStarted.Inc()
	span.SetAttributes(attribute.String("stream.id", streamID))

	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	go func() {
		defer cancel()
		s.produce(genCtx, chat.ID, user.ID, streamID, history, sink)
	}()

	return &Started{ChatID: chat.ID, StreamID: streamID, Events: events}, nil
}

func (s *GenerationService) checkEntitlement(ctx context.Context, user *middleware.AuthUser) error {
	limit := s.cfg.RegularPerDay
	if user.Type == middleware.UserTypeGuest {
		limit = s.cfg.GuestPerDay
	}
	if limit <= 0 {
		return nil
	}
	n, err := s.repos.Messages.CountByUserSince(ctx, user.ID, s.now().Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	if n >= int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (s *GenerationService) ensureChat(ctx context.Context, userID string, req models.GenerateRequest) (*models.Chat, error) {
	chat, err := s.repos.Chats.Get(ctx, req.ChatID)
	if err == nil {
		if chat.UserID != userID {
			return nil, ErrForbidden
		}
		return chat, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	visibility := req.Visibility
	if visibility != models.VisibilityPublic {
		visibility = models.VisibilityPrivate
	}
	chat = &models.Chat{
		ID:         req.ChatID,
		UserID:     userID,
		Title:      TitleFromMessage(&req.Message),
		Visibility: visibility,
	}
	if err := s.repos.Chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// produce runs the provider and writes every event to sink. The assistant
// message is persisted before the finish event so that a client reconnecting
// after the stream closed finds it in history.
func (s *GenerationService) produce(ctx context.Context, chatID, userID, streamID string, history []models.Message, sink stream.Sink) {
	ctx, span := tracer.Start(ctx, "generation.produce")
	defer span.End()

	log := s.log.WithChatID(chatID).WithStreamID(streamID)
	start := time.Now()
	result := "ok"
	defer func() {
		if err := sink.Close(context.WithoutCancel(ctx)); err != nil {
			log.LogError(err, "failed to close stream")
		}
		stream.StreamsFinished.WithLabelValues(result).Inc()
		stream.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.repos.Chats.SetStatus(ctx, chatID, models.ChatStatusGenerating); err != nil {
		log.LogError(err, "failed to mark chat generating")
	}

	assistantID := uuid.NewString()
	if err := sink.Write(ctx, stream.Event{Type: stream.EventStart, MessageID: assistantID}); err != nil {
		log.LogError(err, "failed to write start event")
	}

	var text []byte
	err := s.provider.Stream(ctx, llm.Request{System: s.cfg.SystemPrompt, Messages: history}, func(delta string) error {
		text = append(text, delta...)
		return sink.Write(ctx, stream.Event{Type: stream.EventTextDelta, MessageID: assistantID, Delta: delta})
	})

	if err == nil {
		reply := &models.Message{
			ID:        assistantID,
			ChatID:    chatID,
			UserID:    userID,
			Role:      models.RoleAssistant,
			Parts:     datatypes.NewJSONSlice([]models.Part{{Type: models.PartText, Text: string(text)}}),
			CreatedAt: s.now().UTC(),
		}
		_, err = s.repos.Messages.Upsert(ctx, reply)
		if err != nil {
			err = fmt.Errorf("save assistant message: %w", err)
		}
	}

	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.LogError(err, "generation failed", "provider", s.provider.Name())
		if werr := sink.Write(context.WithoutCancel(ctx), stream.Event{Type: stream.EventError, MessageID: assistantID, Error: "generation failed"}); werr != nil {
			log.LogError(werr, "failed to write error event")
		}
		if serr := s.repos.Chats.SetStatus(context.WithoutCancel(ctx), chatID, models.ChatStatusFailed); serr != nil {
			log.LogError(serr, "failed to mark chat failed")
		}
		return
	}

	if err := sink.Write(ctx, stream.Event{Type: stream.EventFinish, MessageID: assistantID}); err != nil {
		log.LogError(err, "failed to write finish event")
	}
	if err := s.repos.Chats.SetStatus(ctx, chatID, models.ChatStatusIdle); err != nil {
		log.LogError(err, "failed to mark chat idle")
	}
	log.Info("generation finished", "chars", len(text), "duration_ms", time.Since(start).Milliseconds())
}
