package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/supatable-api/api/swagger"
	"github.com/noah-isme/supatable-api/internal/models"
	"github.com/noah-isme/supatable-api/internal/repository"
	"github.com/noah-isme/supatable-api/internal/service"
	"github.com/noah-isme/supatable-api/pkg/config"
	"github.com/noah-isme/supatable-api/pkg/database"
	"github.com/noah-isme/supatable-api/pkg/logger"
)

// @title Supatable API
// @version 0.1.0
// @description Read-only user directory with search, role filter and pagination
// @BasePath /
// @schemes http

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	provider, closeProvider, err := newProvider(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to init user provider", zap.String("provider", cfg.Provider), zap.Error(err))
	}
	defer closeProvider()

	metrics := service.NewMetricsService()
	users := service.NewUserService(provider, metrics, logr)

	r, err := newRouter(routerDeps{cfg: cfg, logger: logr, metrics: metrics, users: users})
	if err != nil {
		logr.Fatal("failed to build router", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "provider", cfg.Provider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown", zap.Error(err))
	}
}

func newProvider(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.UserProvider, func(), error) {
	if cfg.Provider == config.ProviderMemory {
		seed := make([]models.User, 0, len(database.SeedUsers))
		for _, s := range database.SeedUsers {
			seed = append(seed, models.User{
				ID:        s.ID.String(),
				Email:     s.Email,
				FullName:  s.FullName,
				Role:      models.UserRole(s.Role),
				CreatedAt: s.CreatedAt,
			})
		}
		repo, err := repository.NewMemoryUserRepository(seed...)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}

	if !cfg.Database.MigrateOnStartup {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewUserRepository(db), func() { _ = db.Close() }, nil
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	err = database.Migrate(ctx, db, database.MigrateOptions{
		Attempts: cfg.Database.MigrateAttempts,
		Interval: cfg.Database.MigrateInterval,
		Logger:   logr,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewUserRepository(db), func() { _ = db.Close() }, nil
}
