package storage_test

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/errs"
	"tubefetch/internal/observability"
	"tubefetch/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
)

func newStorage(t *testing.T) (*storage.Storage, *config.Config) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Dir.Temp = t.TempDir()
	cfg.Storage.TTL = time.Hour
	cfg.Storage.SweepInterval = time.Minute

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return storage.New(log, cfg, observability.NewWith(prometheus.NewRegistry())), cfg
}

func TestWorkspaceLifecycle(t *testing.T) {
	stg, cfg := newStorage(t)

	ws, err := stg.NewWorkspace(t.Context())
	if err != nil {
		t.Fatalf("NewWorkspace() failed: %v", err)
	}

	if filepath.Dir(ws.Dir()) != cfg.Dir.Temp || !strings.HasPrefix(filepath.Base(ws.Dir()), "tubefetch_") {
		t.Errorf("unexpected workspace dir %s", ws.Dir())
	}

	if want := filepath.Join(ws.Dir(), "video.%(ext)s"); ws.OutputTemplate() != want {
		t.Errorf("OutputTemplate() = %s, want %s", ws.OutputTemplate(), want)
	}

	other, err := stg.NewWorkspace(t.Context())
	if err != nil {
		t.Fatalf("NewWorkspace() failed: %v", err)
	}
	defer other.Release(t.Context())

	if other.Dir() == ws.Dir() {
		t.Fatal("workspaces share a directory")
	}

	for _, name := range []string{"video.f137.mp4.part", "video.mp4"} {
		if err := os.WriteFile(filepath.Join(ws.Dir(), name), []byte("12345"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	art, err := ws.Locate("mp4")
	if err != nil {
		t.Fatalf("Locate() failed: %v", err)
	}

	if filepath.Base(art.Path) != "video.mp4" || art.Ext != "mp4" || art.Size != 5 {
		t.Errorf("unexpected artifact %+v", art)
	}

	ws.Release(t.Context())
	ws.Release(t.Context())

	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Release: %v", err)
	}
}

func TestLocateMissingArtifact(t *testing.T) {
	stg, _ := newStorage(t)

	ws, err := stg.NewWorkspace(t.Context())
	if err != nil {
		t.Fatalf("NewWorkspace() failed: %v", err)
	}
	defer ws.Release(t.Context())

	if err := os.WriteFile(filepath.Join(ws.Dir(), "video.webm"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := ws.Locate("mp4"); !errors.Is(err, errs.ErrArtifactNotFound) {
		t.Fatalf("Locate() error = %v, want %v", err, errs.ErrArtifactNotFound)
	}
}

func TestSweep(t *testing.T) {
	stg, cfg := newStorage(t)

	mkdir := func(name string, age time.Duration) string {
		dir := filepath.Join(cfg.Dir.Temp, name)
		if err := os.Mkdir(dir, 0o700); err != nil {
			t.Fatal(err)
		}

		old := time.Now().Add(-age)
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatal(err)
		}

		return dir
	}

	orphan := mkdir("tubefetch_orphan", 2*time.Hour)
	fresh := mkdir("tubefetch_fresh", time.Minute)
	foreign := mkdir("someone_else", 2*time.Hour)

	active, err := stg.NewWorkspace(t.Context())
	if err != nil {
		t.Fatalf("NewWorkspace() failed: %v", err)
	}
	defer active.Release(t.Context())

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(active.Dir(), old, old); err != nil {
		t.Fatal(err)
	}

	if removed := stg.Sweep(t.Context()); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("orphan not removed")
	}

	for _, dir := range []string{fresh, foreign, active.Dir()} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s removed unexpectedly: %v", dir, err)
		}
	}
}
