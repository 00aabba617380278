package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/recetas-api/internal/auth"
	"github.com/Clark-Hu/recetas-api/internal/config"
	httpserver "github.com/Clark-Hu/recetas-api/internal/http"
	"github.com/Clark-Hu/recetas-api/internal/logging"
	"github.com/Clark-Hu/recetas-api/internal/media"
	"github.com/Clark-Hu/recetas-api/internal/metrics"
	"github.com/Clark-Hu/recetas-api/internal/repository"
	"github.com/Clark-Hu/recetas-api/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{})
		bootLogger.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	if cfg.AutoMigrate {
		if err := st.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}
	if err := metrics.RegisterPool(prometheus.DefaultRegisterer, st); err != nil {
		logger.Warn().Err(err).Msg("register pool metrics")
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	if err != nil {
		logger.Fatal().Err(err).Msg("init token manager")
	}

	uploader, err := newUploader(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init media store")
	}

	server := httpserver.New(cfg, httpserver.Deps{
		Store:     st,
		Repo:      repository.New(st),
		Tokens:    tokens,
		Passwords: auth.NewPasswordHasher(cfg.BcryptCost),
		Media:     uploader,
		Logger:    logger,
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	logger.Info().Msg("server stopped")
}

func newUploader(cfg config.Config, logger zerolog.Logger) (media.Uploader, error) {
	mediaLogger := logger.With().Str("component", "media").Logger()
	if cfg.MediaBackend == config.MediaBackendHTTP {
		return media.NewHTTPClient(cfg.MediaURL, cfg.MediaAPIKey, time.Duration(cfg.MediaTimeoutSecs)*time.Second, mediaLogger)
	}
	return media.NewDiskStore(cfg.MediaDir, cfg.MediaPublicPrefix, cfg.MediaMaxUploadBytes, mediaLogger)
}
