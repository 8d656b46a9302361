package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dctmfoo/AIResearchScribe/api"
	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/providers"
	"github.com/dctmfoo/AIResearchScribe/providers/openai"
	"github.com/dctmfoo/AIResearchScribe/services"
	"github.com/dctmfoo/AIResearchScribe/storage"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// A generation request runs text, image and speech calls back to back.
const generationWriteTimeout = 10 * time.Minute

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := storage.OpenDatabase(cfg, logging)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	articleStore := storage.NewArticleStore(db)
	userStore := storage.NewUserStore(db)

	objectStore, err := storage.NewObjectStore(context.Background(), storage.S3OptionsFromConfig(cfg))
	if err != nil {
		logging.Fatal("Failed to create object storage client", zap.Error(err))
	}
	logging.Info("Object storage ready", zap.String("bucket", cfg.S3Bucket))

	var provider providers.Provider = openai.NewClient(cfg, logging)
	media := services.NewMediaService(cfg, provider, provider, objectStore, logging)
	articles := services.NewArticleService(cfg, provider.Name(), provider, media, articleStore, logging)
	auth := services.NewAuthService(cfg, userStore)

	var limiter api.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logging.Warn("Redis not reachable yet, rate limiting is skipped until it is", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			logging.Info("Using Redis rate limiter", zap.String("addr", cfg.RedisAddr))
		}
		cancel()
		limiter = api.NewRedisLimiter(rdb, cfg.RateLimitWindow)
	} else {
		logging.Info("REDIS_ADDR not set, using in-process rate limiter")
		limiter = api.NewMemoryLimiter(cfg.RateLimitWindow)
	}

	refresher := services.NewURLRefresher(cfg, articleStore, media, logging)
	cronScheduler := cron.New()
	if _, err := refresher.Schedule(cronScheduler, cfg.URLRefreshSchedule); err != nil {
		logging.Fatal("Invalid URL refresh schedule", zap.String("schedule", cfg.URLRefreshSchedule), zap.Error(err))
	}
	cronScheduler.Start()

	router := api.NewRouter(cfg, &api.Handler{
		Generator: articles,
		Articles:  articleStore,
		Speech:    media,
		Auth:      auth,
		Limiter:   limiter,
		Logger:    logging,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      generationWriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logging.Info("Shutting down", zap.String("signal", sig.String()))

	// running generations may need minutes to finish
	ctx, cancel := context.WithTimeout(context.Background(), generationWriteTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	<-cronScheduler.Stop().Done()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logging.Info("Server stopped")
}
