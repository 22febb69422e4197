package downloader_test

import (
	"slices"
	"testing"

	"tubefetch/internal/downloader"
)

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "137", want: "137+bestaudio[ext=m4a]/bestvideo+bestaudio/best"},
		{id: "", want: "bestvideo+bestaudio/best"},
		{id: "bestvideo+bestaudio/best", want: "bestvideo+bestaudio/best"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := downloader.FormatSelector(tt.id); got != tt.want {
				t.Errorf("FormatSelector(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestInfoArgs(t *testing.T) {
	got := downloader.InfoArgs(downloader.Options{UserAgent: "UA", CookieFile: "/c.txt"}, "https://example.com/v")
	want := []string{
		"--dump-json", "--no-playlist", "--no-warnings",
		"--user-agent", "UA",
		"--cookies", "/c.txt",
		"https://example.com/v",
	}

	if !slices.Equal(got, want) {
		t.Errorf("InfoArgs() = %q, want %q", got, want)
	}
}

func TestDownloadArgs(t *testing.T) {
	opts := downloader.Options{
		UserAgent:     "UA",
		ExtractorArgs: "youtube:player_client=android,web;player_skip=web",
		FFmpegPath:    "/bins/ffmpeg",
		Proxy:         "socks5h://p:1080",
	}
	params := downloader.DownloadParams{
		URL:            "https://example.com/v",
		FormatID:       "22",
		OutputTemplate: "/tmp/tubefetch_x/video.%(ext)s",
	}

	got := downloader.DownloadArgs(opts, params)
	want := []string{
		"--newline", "--progress", "--no-playlist",
		"--user-agent", "UA",
		"--ffmpeg-location", "/bins/ffmpeg",
		"--extractor-args", "youtube:player_client=android,web;player_skip=web",
		"--proxy", "socks5h://p:1080",
		"-f", "22+bestaudio[ext=m4a]/bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", "/tmp/tubefetch_x/video.%(ext)s",
		"https://example.com/v",
	}

	if !slices.Equal(got, want) {
		t.Errorf("DownloadArgs() =\n%q\nwant\n%q", got, want)
	}
}
