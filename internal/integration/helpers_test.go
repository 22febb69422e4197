//go:build integration

package integration_test

import (
	"bufio"
	_ "embed"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/downloader"
	httprouter "tubefetch/internal/infrastructure/delivery/http"
	"tubefetch/internal/metadata"
	"tubefetch/internal/observability"
	"tubefetch/internal/progress"
	"tubefetch/internal/service"
	"tubefetch/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
)

//go:embed testdata/fake-ytdlp.sh
var fakeYTDLPScript string

type fixture struct {
	cfg     *config.Config
	client  *http.Client
	url     string
	tempDir string
}

// newFixture serves the full API backed by the fake yt-dlp script.
func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}

	baseDir := t.TempDir()

	scriptPath := filepath.Join(baseDir, "yt-dlp")
	if err := os.WriteFile(scriptPath, []byte(fakeYTDLPScript), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}

	t.Setenv("TUBEFETCH_FAKE_MODE", mode)

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	cfg.Tool.YTdlpPath = scriptPath
	cfg.Tool.FFmpegPath = ""
	cfg.Dir.Temp = filepath.Join(baseDir, "tmp")
	cfg.Dir.Cache = filepath.Join(baseDir, "cache")
	cfg.Dir.CookieFile = ""
	cfg.Progress.Interval = 10 * time.Millisecond
	cfg.Progress.WaitTimeout = 5 * time.Second
	cfg.HTTP.HandlerTimeout = 5 * time.Second
	cfg.HTTP.DownloadTimeout = 5 * time.Second

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewWith(prometheus.NewRegistry())

	dl := downloader.NewYTdlp(log, cfg, nil, nil, metrics)
	svc := service.New(log, cfg, dl,
		metadata.NewCache(log, cfg, metrics),
		progress.New(log, cfg),
		storage.New(log, cfg, metrics),
		metrics,
	)

	server := httptest.NewServer(httprouter.New(log, cfg, svc, metrics))
	t.Cleanup(server.Close)

	client := server.Client()
	client.Timeout = 10 * time.Second

	return &fixture{cfg: cfg, client: client, url: server.URL, tempDir: cfg.Dir.Temp}
}

func (fx *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()

	resp, err := fx.client.Post(fx.url+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}

	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

type event struct {
	name string
	data string
}

// readEvents parses server-sent events until the stream ends.
func readEvents(body io.Reader, out chan<- event) {
	defer close(out)

	var current event

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			out <- current
			current = event{}
		}
	}
}

// assertNoWorkspaces waits for the download handler to release its workspace,
// which happens after the client has already read the body.
func assertNoWorkspaces(t *testing.T, dir string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			t.Fatalf("read temp dir: %v", err)
		}

		if len(entries) == 0 {
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("expected temp dir to be empty, found %d entries", len(entries))
		}

		time.Sleep(20 * time.Millisecond)
	}
}
