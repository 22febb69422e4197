// Package service implements the video info, download and progress use cases.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"tubefetch/internal/config"
	"tubefetch/internal/consts"
	"tubefetch/internal/downloader"
	"tubefetch/internal/entity"
	"tubefetch/internal/errs"
	"tubefetch/internal/metadata"
	"tubefetch/internal/observability"
	"tubefetch/internal/progress"
	"tubefetch/internal/storage"
	"tubefetch/pkg/urls"
)

// DeliverFunc streams a finished download to the caller. The body is only
// valid until DeliverFunc returns.
type DeliverFunc func(ctx context.Context, delivery *entity.Delivery) error

// Video is the application boundary used by transports.
type Video interface {
	// GetVideoInfo returns normalized metadata for url, memoized per URL.
	GetVideoInfo(ctx context.Context, url string) (*entity.VideoMetadata, error)
	// Download fetches the requested format into a private workspace, hands
	// the file to deliver and removes it afterwards on every path.
	Download(ctx context.Context, req entity.DownloadRequest, deliver DeliverFunc) error
	// WatchProgress streams progress of the download identified by url and id.
	WatchProgress(ctx context.Context, url, id string) <-chan progress.Update
	// Progress returns the latest progress of the download identified by url and id.
	Progress(url, id string) float64
}

type video struct {
	log        *slog.Logger
	cfg        *config.Config
	downloader downloader.Downloader
	cache      *metadata.Cache
	registry   *progress.Registry
	storage    *storage.Storage
	metrics    *observability.Metrics
}

var _ Video = (*video)(nil)

// New creates the video service.
func New(
	log *slog.Logger,
	cfg *config.Config,
	dl downloader.Downloader,
	cache *metadata.Cache,
	registry *progress.Registry,
	stg *storage.Storage,
	metrics *observability.Metrics,
) Video {
	return &video{
		log:        log.With(slog.String("package", "service")),
		cfg:        cfg,
		downloader: dl,
		cache:      cache,
		registry:   registry,
		storage:    stg,
		metrics:    metrics,
	}
}

func (svc *video) GetVideoInfo(ctx context.Context, url string) (*entity.VideoMetadata, error) {
	url = urls.Normalize(url)
	if !urls.IsURLValid(url) {
		return nil, errs.ErrInvalidURL
	}

	meta, err := svc.cache.Get(ctx, url, svc.fetchInfo)
	if err != nil {
		svc.metrics.RecordInfoRequest("error")

		return nil, fmt.Errorf("get video info: %w", err)
	}

	svc.metrics.RecordInfoRequest("success")
	svc.log.DebugContext(ctx, "video info", slog.String("url", url), slog.Any("metadata", meta))

	return meta, nil
}

func (svc *video) fetchInfo(ctx context.Context, url string) (*entity.VideoMetadata, error) {
	raw, err := svc.downloader.Info(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("info: %w", err)
	}

	meta, err := metadata.Normalize(raw)
	if err != nil {
		svc.log.ErrorContext(ctx, "unexpected metadata document", slog.String("url", url), slog.Any("error", err))

		return nil, fmt.Errorf("normalize: %w", err)
	}

	return meta, nil
}

func (svc *video) Download(ctx context.Context, req entity.DownloadRequest, deliver DeliverFunc) (err error) {
	req.URL = urls.Normalize(req.URL)
	if !urls.IsURLValid(req.URL) {
		return errs.ErrInvalidURL
	}

	if !IsFormatIDValid(req.FormatID) {
		return errs.ErrInvalidFormat
	}

	log := svc.log.With(slog.Any("request", req))

	sess := svc.registry.Begin(progress.Key(req.URL, req.ID))
	defer sess.Close()

	svc.metrics.RecordDownloadStarted()
	defer svc.metrics.DownloadTimer()()

	defer func() {
		if err == nil {
			return
		}

		sess.Fail(err)
		svc.metrics.RecordDownloadFailed()

		if errors.Is(err, context.Canceled) {
			log.InfoContext(ctx, "download canceled by client")

			return
		}

		log.ErrorContext(ctx, "download failed", slog.Any("error", err))
	}()

	ws, err := svc.storage.NewWorkspace(ctx)
	if err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	// cleanup must run even when the request context is already canceled
	defer ws.Release(context.WithoutCancel(ctx))

	err = svc.downloader.Download(ctx, downloader.DownloadParams{
		URL:            req.URL,
		FormatID:       req.FormatID,
		OutputTemplate: ws.OutputTemplate(),
	}, sess.Set)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	artifact, err := ws.Locate(consts.ContainerMP4)
	if err != nil {
		return fmt.Errorf("locate: %w", err)
	}

	sess.Complete()

	file, err := os.Open(artifact.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	log.InfoContext(ctx, "download ready", slog.Any("artifact", artifact))

	err = deliver(ctx, &entity.Delivery{
		Filename: BuildFilename(req.Title, artifact.Ext),
		Size:     artifact.Size,
		Body:     file,
	})
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	svc.metrics.RecordDownloadCompleted(artifact.Size)

	return nil
}

func (svc *video) WatchProgress(ctx context.Context, url, id string) <-chan progress.Update {
	return svc.registry.Watch(ctx, progress.Key(urls.Normalize(url), id))
}

func (svc *video) Progress(url, id string) float64 {
	return svc.registry.Get(progress.Key(urls.Normalize(url), id))
}
