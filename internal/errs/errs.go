// Package errs defines common error variables used across the application.
package errs

import "errors"

// Request errors.
var (
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
	// ErrInvalidURL indicates that the URL field in the request is invalid.
	ErrInvalidURL = errors.New("invalid url field")
	// ErrInvalidFormat indicates that the format field in the request is invalid.
	ErrInvalidFormat = errors.New("invalid format field")
)

// External tool errors.
var (
	// ErrExternalTool indicates that yt-dlp exited with a non-zero code or could not be run.
	ErrExternalTool = errors.New("external tool failed")
	// ErrEmptyOutput indicates that yt-dlp exited successfully but printed nothing.
	ErrEmptyOutput = errors.New("external tool produced no output")
	// ErrParse indicates that the yt-dlp output is not a valid metadata document.
	ErrParse = errors.New("parse metadata")
	// ErrArtifactNotFound indicates that no output file was produced by a download.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Progress errors.
var (
	// ErrDownloadAborted indicates that a download ended before completing.
	ErrDownloadAborted = errors.New("download aborted")
	// ErrProgressWaitTimeout indicates that no download started for a progress stream in time.
	ErrProgressWaitTimeout = errors.New("no download started in time")
)

// Dependency errors.
var (
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)
