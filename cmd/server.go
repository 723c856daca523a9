package cmd

import (
	"context"
	"fmt"
	"time"

	"FragFM/cache"
	"FragFM/core/audio"
	"FragFM/core/ingest"
	"FragFM/db"
	"FragFM/logger"
	"FragFM/repository"
	"FragFM/server"
	"FragFM/storage"

	"github.com/spf13/cobra"
)

const (
	sweepInterval   = 30 * time.Minute
	shutdownTimeout = 30 * time.Second
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动FragFM服务器",
	Long:  `启动FragFM的HTTP服务器，提供上传、片段签名URL和歌单API`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(ctx context.Context) error {
	cfg := loadConfig()
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sqlDB, err := db.ConnectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := db.InitDB(ctx, sqlDB); err != nil {
		return err
	}
	gormDB, err := db.OpenGorm(sqlDB)
	if err != nil {
		return err
	}

	gateway, err := storage.NewGateway(ctx, cfg)
	if err != nil {
		return err
	}

	checks := map[string]server.HealthCheck{"database": sqlDB.PingContext}
	var urlCache cache.URLCache
	if cfg.URLCacheEnabled {
		client, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			// playback still works without the cache, only slower
			logger.Warn("signed URL cache disabled", logger.ErrorField(err))
		} else {
			defer client.Close()
			urlCache = cache.NewRedisURLCache(client)
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
			logger.Info("signed URL cache enabled", logger.String("addr", cfg.RedisAddr()))
		}
	}

	orchestrator := ingest.NewOrchestrator(
		ingest.Options{TempDir: cfg.TempDir, MaxUploadBytes: cfg.MaxUploadBytes},
		audio.NewTagExtractor(audio.NewFFprobe(cfg.FFprobePath, cfg.ProbeTimeout)),
		audio.NewFFmpegSegmenter(cfg.FFmpegPath, cfg.FragmentBitrate, cfg.FragmentSeconds, cfg.TranscodeTimeout),
		gateway,
		repository.NewMySQLSongRepository(sqlDB),
	)
	if n, err := orchestrator.SweepStale(cfg.StagedMaxAge); err != nil {
		logger.Warn("startup staging sweep failed", logger.ErrorField(err))
	} else {
		logger.Info("startup staging sweep finished", logger.Int("removed", n))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go orchestrator.RunSweeper(ctx, sweepInterval, cfg.StagedMaxAge)

	handler := buildHandler(cfg, sqlDB, gormDB, gateway, urlCache, orchestrator)
	router := server.NewRouter(handler, server.RouterConfig{CORSOrigin: cfg.CORSOrigin, Checks: checks})
	return server.Run(ctx, ":"+cfg.Port, router, shutdownTimeout)
}
