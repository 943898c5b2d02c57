// Package di wires the application's services together.
package di

import (
	"context"
	"fmt"
	"os"

	"resumable-chat/backend/internal/llm"
	"resumable-chat/backend/internal/repository"
	"resumable-chat/backend/internal/service"
	"resumable-chat/backend/internal/storage"
	"resumable-chat/backend/internal/stream"
	"resumable-chat/backend/pkg/config"
	"resumable-chat/backend/pkg/health"
	"resumable-chat/backend/pkg/jwt"
	"resumable-chat/backend/pkg/logger"
	"resumable-chat/backend/pkg/resilience"
	"resumable-chat/backend/pkg/validator"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *logger.Logger

	JWTService *jwt.Service
	Repos      *repository.Repositories
	Store      storage.Store
	Janitor    *storage.Janitor
	Transport  stream.Transport
	Registry   *stream.Registry
	Resumer    *stream.Resumer
	Provider   llm.Provider
	Health     *health.Checker
	Validator  *validator.OpenAPIValidator

	UserService       *service.UserService
	ChatService       *service.ChatService
	MessageService    *service.MessageService
	AttachmentService *service.AttachmentService
	GenerationService *service.GenerationService
	ResumeService     *service.ResumeService
}

// Deps are the externally built clients. Nil fields fall back to in-process
// implementations: the memory transport, the memory store and the provider
// selected by LLM_PROVIDER.
type Deps struct {
	Redis    *goredis.Client
	Store    storage.Store
	Provider llm.Provider
}

// New creates a new dependency injection container
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger, deps Deps) (*Container, error) {
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is not configured")
	}
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	repos := repository.New(db)

	store := deps.Store
	if store == nil {
		log.Warn("no storage bucket configured, keeping uploads in memory")
		store = storage.NewMemoryStore(cfg.Server.BaseURL + "/files")
	}
	janitor := storage.NewJanitor(store, log)

	opts := stream.TransportOptions{
		TTL:          cfg.Streams.TTL,
		IdleTimeout:  cfg.Streams.IdleTimeout,
		BlockTimeout: cfg.Streams.BlockTimeout,
		MaxLen:       cfg.Streams.MaxLen,
	}
	var transport stream.Transport
	if deps.Redis != nil {
		transport = stream.NewRedisTransport(deps.Redis, opts)
	} else {
		log.Warn("no Redis configured, resumable streams are local to this instance")
		transport = stream.NewMemoryTransport(opts)
	}

	provider := deps.Provider
	if provider == nil {
		var err error
		if provider, err = llm.New(cfg); err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
	}

	registry := stream.NewRegistry(repos.Streams)
	breaker := resilience.NewCircuitBreaker(resilience.DefaultConfig("stream-transport"), log)
	resumer := stream.NewResumer(transport, breaker, log)

	userService := service.NewUserService(repos, jwtService, janitor, log)
	chatService := service.NewChatService(repos, janitor, log)
	messageService := service.NewMessageService(repos, chatService, janitor, log)
	attachmentService := service.NewAttachmentService(repos, store, cfg.Storage.MaxUploadSize, cfg.Storage.AllowedTypes, log)
	generationService := service.NewGenerationService(repos, registry, transport, provider, service.GenerationConfig{
		SystemPrompt:  cfg.LLM.SystemPrompt,
		Timeout:       cfg.Streams.GenerationTimeout,
		GuestPerDay:   cfg.Entitlements.GuestMessagesPerDay,
		RegularPerDay: cfg.Entitlements.RegularMessagesPerDay,
	}, log)
	resumeService := service.NewResumeService(chatService, repos, registry, resumer, cfg.Streams.FreshnessWindow, log)

	checker := health.NewChecker(log, 0)
	checker.RegisterPing("database", func(ctx context.Context) error {
		return config.PingDB(ctx, db, cfg.Database.Timeout)
	})
	// without Redis the memory transport cannot fail, so the check is informational
	checker.RegisterCheck("stream_transport", deps.Redis != nil, func(ctx context.Context) (health.Status, string, error) {
		if err := transport.Ping(ctx); err != nil {
			return health.StatusDown, "", err
		}
		state := breaker.State()
		if state != resilience.StateClosed {
			return health.StatusDegraded, "circuit " + string(state), nil
		}
		return health.StatusUp, "", nil
	})

	var v *validator.OpenAPIValidator
	if path := cfg.Server.OpenAPISpec; path != "" {
		if _, err := os.Stat(path); err == nil {
			if v, err = validator.NewFromFile(path); err != nil {
				return nil, err
			}
		} else {
			log.Warn("OpenAPI document not found, request validation disabled", "path", path)
		}
	}

	return &Container{
		Config:     cfg,
		DB:         db,
		Logger:     log,
		JWTService: jwtService,
		Repos:      repos,
		Store:      store,
		Janitor:    janitor,
		Transport:  transport,
		Registry:   registry,
		Resumer:    resumer,
		Provider:   provider,
		Health:     checker,
		Validator:  v,

		UserService:       userService,
		ChatService:       chatService,
		MessageService:    messageService,
		AttachmentService: attachmentService,
		GenerationService: generationService,
		ResumeService:     resumeService,
	}, nil
}
