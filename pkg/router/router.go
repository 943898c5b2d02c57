package router

import (
	"context"
	"net/http"

	"resumable-chat/backend/internal/api"
	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/ws"
	"resumable-chat/backend/pkg/config"
	"resumable-chat/backend/pkg/di"
	"resumable-chat/backend/pkg/errors"
	"resumable-chat/backend/pkg/logger"
	"resumable-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	engine.Use(limitBody(cfg.Security.MaxBodySize))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes. Background work started
// here stops when ctx ends.
func (r *Router) SetupRoutes(ctx context.Context) {
	c := r.Container

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService, r.Logger)
	optionalAuth := middleware.OptionalAuth(c.JWTService)

	limiter := middleware.NewRateLimiter(r.Logger, middleware.RateLimiterOptions{
		Limit: rate.Limit(r.Config.Security.RateLimit),
		Burst: r.Config.Security.RateLimitBurst,
	})
	rateLimit := limiter.Middleware(ctx)

	authHandler := api.NewAuthHandler(c.UserService)
	chatHandler := api.NewChatHandler(c.ChatService, c.MessageService)
	fileHandler := api.NewFileHandler(c.AttachmentService)
	generateHandler := api.NewGenerateHandler(c.GenerationService, c.ResumeService, r.Config.Streams.Enabled)
	relay := ws.NewRelay(r.Config.Security.AllowedOrigins)

	r.Engine.GET("/health", c.Health.Handler())
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Engine.Group("/api/v1")
	if c.Validator != nil {
		v1.Use(c.Validator.Middleware())
	}

	v1.GET("/health", c.Health.Handler())

	authRoutes := v1.Group("/auth")
	authRoutes.Use(rateLimit)
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/guest", authHandler.Guest)
		authRoutes.GET("/me", jwtAuth, authHandler.Me)
	}

	// resume answers 204 before authentication when the feature is off, so
	// the handler checks the caller itself
	v1.GET("/generate/:chatId/resume", optionalAuth, generateHandler.Resume)
	v1.GET("/generate/:chatId/resume/ws", optionalAuth, generateHandler.ResumeWS(relay))

	protected := v1.Group("/")
	protected.Use(jwtAuth, rateLimit)
	{
		protected.POST("/generate", generateHandler.Generate)

		protected.GET("/chats", chatHandler.List)
		protected.GET("/chats/:id", chatHandler.Get)
		protected.PATCH("/chats/:id", chatHandler.Update)
		protected.DELETE("/chats/:id", chatHandler.Delete)
		protected.GET("/chats/:id/messages", chatHandler.Messages)
		protected.DELETE("/messages/:id/trailing", chatHandler.DeleteTrailing)

		protected.POST("/files/upload", middleware.RequireUserType(models.UserTypeRegular), fileHandler.Upload)

		protected.DELETE("/users/me", authHandler.DeleteMe)
	}
}

// limitBody caps request bodies at n bytes.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
