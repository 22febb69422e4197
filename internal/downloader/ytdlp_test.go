package downloader_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/downloader"
	"tubefetch/internal/errs"
	"tubefetch/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// writeScript writes an executable fake yt-dlp and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp scripts need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil { //nolint:gosec
		t.Fatalf("write script: %v", err)
	}

	return path
}

func newYTdlp(t *testing.T, bin string) *downloader.YTdlp {
	t.Helper()

	cfg := &config.Config{}
	cfg.Tool.YTdlpPath = bin
	cfg.Tool.FFmpegPath = "ffmpeg"
	cfg.Tool.UserAgent = "UA"

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return downloader.NewYTdlp(log, cfg, nil, nil, observability.NewWith(prometheus.NewRegistry()))
}

func TestYTdlpInfo(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		want    string
		wantErr error
	}{
		{
			name: "json on stdout, warnings on stderr",
			script: `echo "WARNING: something" >&2
echo '{"title":"T"}'`,
			want: `{"title":"T"}`,
		},
		{
			name: "receives metadata flags",
			script: `case "$*" in
*"--dump-json --no-playlist --no-warnings --user-agent UA"*) echo '{"ok":true}' ;;
*) exit 3 ;;
esac`,
			want: `{"ok":true}`,
		},
		{
			name:    "non-zero exit",
			script:  `echo "ERROR: Unsupported URL" >&2; exit 1`,
			wantErr: errs.ErrExternalTool,
		},
		{
			name:    "empty output",
			script:  `exit 0`,
			wantErr: errs.ErrEmptyOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newYTdlp(t, writeScript(t, tt.script))

			got, err := d.Info(t.Context(), "https://example.com/v")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Info() error = %v, want %v", err, tt.wantErr)
				}

				if !errors.Is(err, errs.ErrExternalTool) {
					t.Errorf("Info() error = %v, want it to wrap %v", err, errs.ErrExternalTool)
				}

				return
			}

			if err != nil {
				t.Fatalf("Info() failed: %v", err)
			}

			if string(got) != tt.want {
				t.Errorf("Info() = %s, want %s", got, tt.want)
			}
		})
	}
}

const downloadScript = `out=""
while [ $# -gt 0 ]; do
	case "$1" in
		-o) out="$2"; shift ;;
	esac
	shift
done
echo "[youtube] abc: Downloading webpage"
echo "[download]  10.0% of 1.00MiB"
echo "[download]  55.5% of 1.00MiB" >&2
echo "[Merger] Merging formats into \"video.mp4\""
echo "[download] 100% of 1.00MiB"
printf data > "$(echo "$out" | sed 's/%(ext)s/mp4/')"
`

func TestYTdlpDownload(t *testing.T) {
	d := newYTdlp(t, writeScript(t, downloadScript))
	dir := t.TempDir()

	var got []float64

	err := d.Download(t.Context(), downloader.DownloadParams{
		URL:            "https://example.com/v",
		FormatID:       "22",
		OutputTemplate: filepath.Join(dir, "video.%(ext)s"),
	}, func(p float64) { got = append(got, p) })
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}

	want := []float64{10, 55.5, 99, 100}
	if !slices.Equal(got, want) {
		t.Errorf("progress = %v, want %v", got, want)
	}

	if _, err := os.Stat(filepath.Join(dir, "video.mp4")); err != nil {
		t.Errorf("expected output file: %v", err)
	}
}

func TestYTdlpDownloadFailure(t *testing.T) {
	d := newYTdlp(t, writeScript(t, `echo "[download]   3.0% of 1.00MiB"
echo "ERROR: Requested format is not available" >&2
exit 1`))

	var got []float64

	err := d.Download(t.Context(), downloader.DownloadParams{
		URL:            "https://example.com/v",
		OutputTemplate: filepath.Join(t.TempDir(), "video.%(ext)s"),
	}, func(p float64) { got = append(got, p) })
	if !errors.Is(err, errs.ErrExternalTool) {
		t.Fatalf("Download() error = %v, want %v", err, errs.ErrExternalTool)
	}

	if !slices.Equal(got, []float64{3}) {
		t.Errorf("progress = %v, want [3]", got)
	}
}

func TestYTdlpDownloadCanceled(t *testing.T) {
	d := newYTdlp(t, writeScript(t, `echo "[download]   1.0% of 1.00MiB"
sleep 30`))

	ctx, cancel := context.WithCancel(t.Context())

	start := time.Now()

	err := d.Download(ctx, downloader.DownloadParams{
		URL:            "https://example.com/v",
		OutputTemplate: filepath.Join(t.TempDir(), "video.%(ext)s"),
	}, func(float64) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Download() error = %v, want %v", err, context.Canceled)
	}

	if elapsed := time.Since(start); elapsed > 20*time.Second {
		t.Errorf("Download() took %v after cancel", elapsed)
	}
}

func TestYTdlpMissingBinary(t *testing.T) {
	d := newYTdlp(t, filepath.Join(t.TempDir(), "does-not-exist"))

	if _, err := d.Info(t.Context(), "https://example.com/v"); !errors.Is(err, errs.ErrExternalTool) {
		t.Fatalf("Info() error = %v, want %v", err, errs.ErrExternalTool)
	}
}
