package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/internal/storage"
	"resumable-chat/backend/pkg/config"
	"resumable-chat/backend/pkg/di"
	"resumable-chat/backend/pkg/logger"
	"resumable-chat/backend/pkg/router"
	"resumable-chat/backend/pkg/secrets"
	"resumable-chat/backend/shared/observability"
	"resumable-chat/backend/shared/redis"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sm, err := secrets.NewVaultManager(cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	if err := secrets.Apply(ctx, sm, cfg, log); err != nil {
		log.LogError(err, "Failed to resolve secrets")
		os.Exit(1)
	}

	shutdownTelemetry, err := observability.Setup(ctx, cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize telemetry")
		os.Exit(1)
	}

	db, err := config.NewDB(cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	rdb, err := redis.NewClient(ctx, cfg)
	if err != nil {
		log.LogError(err, "Failed to connect to Redis")
		os.Exit(1)
	}

	deps := di.Deps{Redis: rdb}
	var gcs *storage.GCSStore
	if cfg.Storage.Bucket != "" {
		gcs, err = storage.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile, cfg.Storage.PublicBaseURL)
		if err != nil {
			log.LogError(err, "Failed to initialize storage", "bucket", cfg.Storage.Bucket)
			os.Exit(1)
		}
		deps.Store = gcs
	}

	container, err := di.New(cfg, db, log, deps)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	container.Health.Start(ctx)

	r := router.New(container)
	r.SetupRoutes(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, container.Health.GRPCServer())

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			log.LogError(err, "gRPC health listener failed", "port", cfg.Server.GRPCPort)
			return
		}
		log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.LogError(err, "gRPC health server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	// SSE responses stay open until their stream ends; Shutdown waits for them
	// up to the deadline.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	grpcServer.GracefulStop()

	container.Janitor.Wait()
	if rdb != nil {
		_ = rdb.Close()
	}
	if gcs != nil {
		_ = gcs.Close()
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.LogError(err, "Telemetry shutdown failed")
	}

	log.Info("Server exited gracefully")
}
