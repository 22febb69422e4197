// Package entity defines the core entities used in the application.
package entity

import (
	"io"
	"log/slog"
)

// VideoMetadata describes a video and the qualities that can be downloaded.
type VideoMetadata struct {
	Title     string         `json:"title"`
	Thumbnail string         `json:"thumbnail"`
	Duration  string         `json:"duration,omitempty"` // "M:SS", omitted when unknown
	Formats   []FormatOption `json:"formats"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (v VideoMetadata) LogValue() slog.Value {
	qualities := make([]string, 0, len(v.Formats))
	for _, f := range v.Formats {
		qualities = append(qualities, f.Quality)
	}

	return slog.GroupValue(
		slog.String("title", v.Title),
		slog.String("duration", v.Duration),
		slog.Any("qualities", qualities),
	)
}

// FormatOption is a selectable quality variant.
type FormatOption struct {
	FormatID string `json:"formatId"` // opaque yt-dlp format identifier
	Quality  string `json:"quality"`  // e.g. "1080p" or "Best Quality"
	Ext      string `json:"ext"`      // always mp4, the merge step guarantees it
}

// DownloadRequest is a request to download one format of a video.
type DownloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format"`
	Title    string `json:"title"`
	// ID optionally names the progress session; the URL is used when empty.
	ID string `json:"id,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r DownloadRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.String("format", r.FormatID),
		slog.String("title", r.Title),
		slog.String("id", r.ID),
	)
}

// Artifact is the file produced by a download.
type Artifact struct {
	Path string
	Ext  string // actual extension without the dot
	Size int64
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (a Artifact) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", a.Path),
		slog.String("ext", a.Ext),
		slog.Int64("size", a.Size),
	)
}

// Delivery is handed to the caller of a download to stream the artifact.
type Delivery struct {
	Filename string // sanitized title with the actual extension
	Size     int64
	Body     io.Reader
}
