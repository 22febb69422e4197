// entry point of the application
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tubefetch/internal/config"
	"tubefetch/internal/consts"
	"tubefetch/internal/depmanager"
	"tubefetch/internal/downloader"
	httprouter "tubefetch/internal/infrastructure/delivery/http"
	"tubefetch/internal/metadata"
	"tubefetch/internal/observability"
	"tubefetch/internal/progress"
	"tubefetch/internal/proxymgr"
	"tubefetch/internal/service"
	"tubefetch/internal/storage"
	httpserver "tubefetch/pkg/http/server"
	"tubefetch/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1) //nolint:gocritic
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New()

	dl, err := newDownloader(ctx, log, cfg, metrics)
	if err != nil {
		log.ErrorContext(ctx, "downloader init failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	stg := storage.New(log, cfg, metrics)
	go stg.StartSweeper(ctx)

	cache, closeCache := newMetadataCache(ctx, log, cfg, metrics)
	defer closeCache()

	svc := service.New(log, cfg, dl,
		cache,
		progress.New(log, cfg),
		stg,
		metrics,
	)

	router := httprouter.New(log, cfg, svc, metrics)

	httpSrv := httpserver.New(router, httpserver.Options{
		Addr:            cfg.HTTP.Port,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})

	log.InfoContext(ctx, "tubefetch started",
		slog.String("port", cfg.HTTP.Port),
		slog.String("downloader", cfg.App.Downloader))

	select {
	case <-ctx.Done():
	case err := <-httpSrv.Notify():
		log.ErrorContext(ctx, "http server stopped", slog.Any("error", err))
	}

	err = httpSrv.Shutdown(context.WithoutCancel(ctx))
	if err != nil {
		log.Error("http server shutdown", slog.Any("error", err))
	}

	log.Info("tubefetch shut down gracefully")
}

// newDownloader builds the configured downloader. The yt-dlp one resolves
// or installs its binaries first, which may take a while on the first run.
func newDownloader(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	metrics *observability.Metrics,
) (downloader.Downloader, error) {
	if cfg.App.Downloader == consts.DownloaderMock {
		return downloader.NewMock(log, consts.DefaultSimulateTime), nil
	}

	depMgr := depmanager.New(log, cfg)

	log.InfoContext(ctx, "checking yt-dlp, ffmpeg and deno, it may take some time...")

	if err := depMgr.Start(ctx); err != nil {
		return nil, err
	}

	var proxyMgr *proxymgr.Manager

	if len(cfg.Proxy.Proxies) > 0 {
		proxyMgr = proxymgr.New(log, cfg, metrics)
		proxyMgr.StartHealthChecker(ctx)

		log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", len(cfg.Proxy.Proxies)))
	}

	return downloader.NewYTdlp(log, cfg, depMgr, proxyMgr, metrics), nil
}

// newMetadataCache builds the metadata cache, backed by Redis when configured.
// An unreachable Redis only costs the shared level, the service still starts.
func newMetadataCache(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	metrics *observability.Metrics,
) (*metadata.Cache, func()) {
	if cfg.Cache.RedisURL == "" {
		return metadata.NewCache(log, cfg, metrics), func() {}
	}

	store, err := metadata.NewRedisStore(ctx, cfg.Cache.RedisURL)
	if err != nil {
		log.WarnContext(ctx, "redis unavailable; metadata cache stays in memory", slog.Any("error", err))

		return metadata.NewCache(log, cfg, metrics), func() {}
	}

	log.InfoContext(ctx, "metadata cache backed by redis")

	return metadata.NewCache(log, cfg, metrics, metadata.WithStore(store)), func() {
		if err := store.Close(); err != nil {
			log.Error("redis close", slog.Any("error", err))
		}
	}
}
