package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/debashish17/Riverside/internal/api"
	"github.com/debashish17/Riverside/internal/auth"
	"github.com/debashish17/Riverside/internal/config"
	"github.com/debashish17/Riverside/internal/lifecycle"
	"github.com/debashish17/Riverside/internal/observability"
	"github.com/debashish17/Riverside/internal/presence"
	"github.com/debashish17/Riverside/internal/recording"
	"github.com/debashish17/Riverside/internal/redis"
	"github.com/debashish17/Riverside/internal/repo"
	"github.com/debashish17/Riverside/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("RIVERSIDE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.With().Str("service", "riverside").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var tracker recording.UploadTracker
	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer rdb.Close()
		tracker = recording.NewRedisTracker(rdb, cfg.Recording.UploadTTL())
		log.Info().Msg("redis upload tracker enabled")
	} else {
		mem := recording.NewMemoryTracker(cfg.Recording.UploadTTL())
		mem.StartJanitor(ctx, time.Minute)
		tracker = mem
	}

	metrics := observability.NewMetrics("riverside")
	hub := presence.NewHub(metrics)

	sessions := repo.NewSessions(db)
	lifecycleService := lifecycle.NewService(sessions, hub, metrics)
	authService := auth.NewService(db, cfg.JWT.Secret, cfg.JWT.TokenTTL())
	recordingService, err := recording.NewService(db, cfg.Recording.Dir, tracker)
	if err != nil {
		log.Fatal().Err(err).Msg("init recording storage")
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(authService, lifecycleService, recordingService, hub).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
