package service

import (
	"context"
	"errors"
	"time"

	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/stream"
	"resumable-chat/backend/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
)

// Resume outcomes, also used as metric labels.
const (
	OutcomeLive  = "live"
	OutcomeError = "error"
)

// Resumed is what a reconnecting client receives.
type Resumed struct {
	Events  stream.Source
	Outcome string
}

// ResumeService answers reconnects: a tap on the live stream when the
// producer is still running, otherwise the fallback decision over persisted
// history.
type ResumeService struct {
	chats    *ChatService
	repos    *repository.Repositories
	registry *stream.Registry
	resumer  *stream.Resumer
	window   time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewResumeService(
	chats *ChatService,
	repos *repository.Repositories,
	registry *stream.Registry,
	resumer *stream.Resumer,
	window time.Duration,
	log *logger.Logger,
) *ResumeService {
	if window <= 0 {
		window = stream.DefaultFreshnessWindow
	}
	return &ResumeService{
		chats:    chats,
		repos:    repos,
		registry: registry,
		resumer:  resumer,
		window:   window,
		log:      log,
		now:      time.Now,
	}
}

// Resume returns ErrChatNotFound, ErrForbidden or ErrNoStreams for
// client-caused failures. Every other failure degrades to an empty stream.
func (s *ResumeService) Resume(ctx context.Context, userID, chatID string) (*Resumed, error) {
	ctx, span := tracer.Start(ctx, "generation.resume")
	defer span.End()
	span.SetAttributes(attribute.String("chat.id", chatID))

	log := s.log.WithChatID(chatID)

	res, err := s.resume(ctx, log, userID, chatID)
	if err != nil {
		outcome := stream.DecisionNotFound.String()
		if errors.Is(err, ErrForbidden) {
			outcome = "forbidden"
		}
		stream.ResumeOutcomes.WithLabelValues(outcome).Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("resume.outcome", res.Outcome))
	stream.ResumeOutcomes.WithLabelValues(res.Outcome).Inc()
	return res, nil
}

func (s *ResumeService) resume(ctx context.Context, log *logger.Logger, userID, chatID string) (*Resumed, error) {
	if _, err := s.chats.Get(ctx, userID, chatID); err != nil {
		if errors.Is(err, ErrChatNotFound) || errors.Is(err, ErrForbidden) {
			return nil, err
		}
		log.LogError(err, "chat lookup failed during resume")
		return &Resumed{Events: stream.Empty(), Outcome: OutcomeError}, nil
	}

	ids, err := s.registry.List(ctx, chatID)
	if err != nil {
		log.LogError(err, "stream registry lookup failed during resume")
		return &Resumed{Events: stream.Empty(), Outcome: OutcomeError}, nil
	}
	if len(ids) == 0 {
		return nil, ErrNoStreams
	}

	latest := ids[len(ids)-1]
	if src, err := s.resumer.Resume(ctx, latest); err == nil {
		log.WithStreamID(latest).Debug("resuming live stream")
		return &Resumed{Events: src, Outcome: OutcomeLive}, nil
	}

	last, err := s.repos.Messages.Latest(ctx, chatID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		last = nil
	case err != nil:
		log.LogError(err, "latest message lookup failed during resume")
		return &Resumed{Events: stream.Empty(), Outcome: OutcomeError}, nil
	}

	d := stream.DecideReplay(ids, last, s.now(), s.window)
	return &Resumed{Events: d.Source(), Outcome: d.Kind.String()}, nil
}
