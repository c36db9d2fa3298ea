package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Deepayon/LocalSeva/internal/identity"
	"github.com/Deepayon/LocalSeva/internal/server"
	"github.com/Deepayon/LocalSeva/pkg/config"
	"github.com/Deepayon/LocalSeva/pkg/logging"
)

func main() {
	bootLogger := logging.New(logging.LevelInfo, "text")

	cfg, err := config.Load(bootLogger, "config")
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open identity store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	validator := buildValidator(cfg, store, logger)

	app := server.NewApp(logger, ctx, cfg, validator)
	if err := app.Run(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildStore(cfg *config.Config, logger *slog.Logger) (identity.Store, func(), error) {
	switch cfg.Identity.Backend {
	case "redis":
		store := identity.NewRedisStore(cfg.Identity.Redis, logger)
		return store, func() { store.Close() }, nil
	default:
		store, err := identity.OpenSQLiteStore(cfg.Identity.SQLite.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}

func buildValidator(cfg *config.Config, store identity.Store, logger *slog.Logger) identity.Validator {
	switch cfg.Auth.Mode {
	case "jwt":
		return identity.NewJWTValidator(cfg.Auth.JWTSecret, store, logger)
	default:
		return identity.NewSessionValidator(store, logger)
	}
}
