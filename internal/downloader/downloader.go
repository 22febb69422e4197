// Package downloader runs yt-dlp to fetch video metadata and download videos.
package downloader

import (
	"context"
	"errors"

	"tubefetch/internal/errs"
)

// ProgressFunc receives download progress percentages in [0, 100].
type ProgressFunc func(progress float64)

// DownloadParams describes a single download.
type DownloadParams struct {
	URL      string
	FormatID string
	// OutputTemplate is a yt-dlp output template inside the download workspace.
	OutputTemplate string
}

// Downloader fetches metadata and media for a video URL.
type Downloader interface {
	// Info returns the raw metadata document printed by the tool.
	Info(ctx context.Context, url string) ([]byte, error)
	// Download writes the merged video next to params.OutputTemplate.
	Download(ctx context.Context, params DownloadParams, onProgress ProgressFunc) error
}

func classifyProcessingError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errs.ErrEmptyOutput):
		return "empty_output"
	case errors.Is(err, errs.ErrExternalTool):
		return "exit_code"
	default:
		return "process"
	}
}
