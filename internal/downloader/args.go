package downloader

import (
	"tubefetch/internal/consts"
)

// Options holds the invocation settings shared by both modes.
type Options struct {
	UserAgent     string
	ExtractorArgs string
	FFmpegPath    string
	DenoPath      string
	CacheDir      string
	CookieFile    string
	Proxy         string
}

// FormatSelector builds a yt-dlp format selector that degrades gracefully:
// the chosen video with m4a audio, then best video and audio, then best single file.
func FormatSelector(formatID string) string {
	if formatID == "" || formatID == consts.BestFormatID {
		return consts.BestFormatID
	}

	return formatID + "+bestaudio[ext=m4a]/" + consts.BestFormatID
}

// InfoArgs returns arguments that print a single JSON metadata document for url.
func InfoArgs(opts Options, url string) []string {
	args := []string{
		"--dump-json",
		"--no-playlist",
		"--no-warnings",
		"--user-agent", opts.UserAgent,
	}

	args = append(args, commonArgs(opts)...)

	return append(args, url)
}

// DownloadArgs returns arguments that download, merge into mp4 and print
// one progress line per update.
func DownloadArgs(opts Options, params DownloadParams) []string {
	args := []string{
		"--newline",
		"--progress",
		"--no-playlist",
		"--user-agent", opts.UserAgent,
	}

	if opts.FFmpegPath != "" {
		args = append(args, "--ffmpeg-location", opts.FFmpegPath)
	}

	if opts.ExtractorArgs != "" {
		args = append(args, "--extractor-args", opts.ExtractorArgs)
	}

	if opts.DenoPath != "" {
		args = append(args, "--js-runtimes", "deno:"+opts.DenoPath)
	}

	args = append(args, commonArgs(opts)...)

	return append(args,
		"-f", FormatSelector(params.FormatID),
		"--merge-output-format", consts.ContainerMP4,
		"-o", params.OutputTemplate,
		params.URL,
	)
}

func commonArgs(opts Options) []string {
	var args []string

	if opts.CacheDir != "" {
		args = append(args, "--cache-dir", opts.CacheDir)
	}

	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}

	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}

	return args
}
