// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultHandlerTimeout is the default timeout for HTTP handlers.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultSimulateTime is the default time to simulate processing in mock downloader.
	DefaultSimulateTime = 1 * time.Second
	// FullProgress is the progress value of a finished download.
	FullProgress = 100.0
	// MergingProgress is reported while yt-dlp merges streams into the final container.
	MergingProgress = 99.0
)

// Formats.
const (
	// ContainerMP4 is the container every download is merged into.
	ContainerMP4 = "mp4"
	// BestFormatID is the waterfall selector offered when no concrete quality is available.
	BestFormatID = "bestvideo+bestaudio/best"
	// BestQualityLabel is the quality label of the BestFormatID option.
	BestQualityLabel = "Best Quality"
	// DefaultTitle is used for the download filename when no title is given.
	DefaultTitle = "video"
)

// HTTP response messages.
const (
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespQueryParamMissing is returned when a required query parameter is missing or invalid.
	RespQueryParamMissing = "query param missing or invalid"
	// RespUnprocessableEntity is returned when the request cannot be processed.
	RespUnprocessableEntity = "unprocessable entity"
	// RespVideoInfoRetrieved is logged when video metadata is served.
	RespVideoInfoRetrieved = "video info retrieved"
	// RespVideoInfoFail is returned when video metadata cannot be fetched.
	RespVideoInfoFail = "video info failed"
	// RespDownloadFail is returned when a download fails before streaming started.
	RespDownloadFail = "download failed"
	// RespTooManyRequests is returned when the rate limit is exceeded.
	RespTooManyRequests = "too many requests"
	// RespStreamingUnsupported is returned when the response writer cannot flush.
	RespStreamingUnsupported = "streaming unsupported"
)

// Downloader identifiers.
const (
	// DownloaderYTdlp is the yt-dlp downloader identifier.
	DownloaderYTdlp = "ytdlp"
	// DownloaderMock is the mock downloader identifier for testing.
	DownloaderMock = "mock"
)

// Progress stream events.
const (
	// EventProgress carries a progress value.
	EventProgress = "progress"
	// EventError is sent once before a failed stream is closed.
	EventError = "error"
)
