package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"tubefetch/internal/consts"
)

// mockInfo is the metadata document served by the mock downloader.
const mockInfo = `{
	"title": "Mock Video",
	"thumbnail": "https://example.com/mock.jpg",
	"duration": 125,
	"formats": [
		{"format_id": "18", "height": 360, "vcodec": "avc1.42001E"},
		{"format_id": "22", "height": 720, "vcodec": "avc1.64001F"},
		{"format_id": "140", "vcodec": "none"}
	]
}`

const mockSteps = 10

// Mock simulates yt-dlp without running any binary.
type Mock struct {
	log      *slog.Logger
	duration time.Duration
}

// NewMock creates a mock downloader that takes duration to finish a download.
func NewMock(log *slog.Logger, duration time.Duration) *Mock {
	if duration <= 0 {
		duration = consts.DefaultSimulateTime
	}

	return &Mock{
		log:      log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderMock)),
		duration: duration,
	}
}

// Info returns a fixed metadata document.
func (m *Mock) Info(ctx context.Context, url string) ([]byte, error) {
	m.log.DebugContext(ctx, "serving mock info", slog.String("url", url))

	return []byte(mockInfo), nil
}

// Download reports progress in ten steps and writes a small mp4 file at the output template.
func (m *Mock) Download(ctx context.Context, params DownloadParams, onProgress ProgressFunc) error {
	log := m.log.With(slog.String("url", params.URL))

	err := simulateDownload(ctx, m.duration, func(progress float64) {
		log.DebugContext(ctx, "mock progress", slog.Float64("progress", progress))

		if onProgress != nil {
			onProgress(progress)
		}
	})
	if err != nil {
		return fmt.Errorf("simulate download: %w", err)
	}

	path := strings.ReplaceAll(params.OutputTemplate, "%(ext)s", consts.ContainerMP4)

	if err := os.WriteFile(path, []byte("mock video for "+params.URL), 0o600); err != nil { //nolint:mnd
		return fmt.Errorf("write mock file: %w", err)
	}

	log.InfoContext(ctx, "mock download finished", slog.String("path", path))

	return nil
}

func simulateDownload(ctx context.Context, duration time.Duration, progressFn ProgressFunc) error {
	ticker := time.NewTicker(duration / mockSteps)
	defer ticker.Stop()

	for step := 1; step <= mockSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			progress := float64(step) * (consts.FullProgress / mockSteps)
			if step == mockSteps-1 {
				progress = consts.MergingProgress
			}

			progressFn(progress)
		}
	}

	return nil
}
