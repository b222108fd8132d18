package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clubsite/internal/accounts"
	"clubsite/internal/api"
	"clubsite/internal/config"
	"clubsite/internal/content"
	"clubsite/internal/db"
	"clubsite/internal/discord"
	"clubsite/internal/linker"
	"clubsite/internal/logging"
	"clubsite/internal/redis"
	"clubsite/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "clubsite-api", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Error("schema_bootstrap_failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	discordClient := discord.NewClient(logger, cfg.BotToken)
	accountStore := accounts.NewStore(dbConn, cfg.EncryptionKey)
	contentStore := content.NewStore(dbConn)

	// avatar mirror: real bucket when configured, deterministic simulator
	// otherwise (dev)
	var mirror storage.AvatarMirror
	if cfg.R2Bucket != "" {
		s3Mirror, err := storage.NewS3Client(storage.S3Config{
			Endpoint:  cfg.R2Endpoint,
			Bucket:    cfg.R2Bucket,
			PublicURL: cfg.R2PublicURL,
		})
		if err != nil {
			logger.Error("storage_init_failed", "error", err)
			os.Exit(1)
		}
		mirror = s3Mirror
	} else {
		mirror = storage.NewSimulator(cfg.R2Bucket, cfg.R2Endpoint)
	}

	svc := linker.NewService(logger, discordClient, accountStore, cfg.GuildID, linker.DefaultBrand()).
		WithCache(redisClient).
		WithAvatarMirror(mirror)

	srv := api.NewServer(logger, dbConn, redisClient, svc, accountStore, contentStore, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("api_stopped")
}
