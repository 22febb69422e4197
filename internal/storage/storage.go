// Package storage manages the temporary workspaces downloads are written to.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tubefetch/internal/config"
	"tubefetch/internal/entity"
	"tubefetch/internal/errs"
	"tubefetch/internal/observability"

	"github.com/google/uuid"
)

const (
	// workspacePrefix marks directories owned by this service inside the temp root.
	workspacePrefix = "tubefetch_"
	// outputBasename is the file stem yt-dlp writes the merged video to.
	outputBasename = "video"
	dirPerm        = 0o700
)

// Storage creates workspaces under the configured temp root and sweeps orphans.
type Storage struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics

	mu     sync.Mutex
	active map[string]struct{} // workspace dir : in use
}

// New creates a new workspace storage.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) *Storage {
	return &Storage{
		log:     log.With(slog.String("package", "storage")),
		cfg:     cfg,
		metrics: metrics,
		active:  make(map[string]struct{}),
	}
}

// Workspace is a directory exclusively owned by one download.
type Workspace struct {
	storage  *Storage
	dir      string
	artifact string
	done     func()

	once sync.Once
}

// NewWorkspace creates a fresh uniquely named directory for one download.
func (s *Storage) NewWorkspace(ctx context.Context) (*Workspace, error) {
	if err := os.MkdirAll(s.cfg.Dir.Temp, dirPerm); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}

	dir := filepath.Join(s.cfg.Dir.Temp, workspacePrefix+uuid.NewString())
	if err := os.Mkdir(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	s.mu.Lock()
	s.active[dir] = struct{}{}
	s.mu.Unlock()

	s.log.DebugContext(ctx, "workspace created", slog.String("dir", dir))

	return &Workspace{storage: s, dir: dir, done: s.metrics.WorkspaceOpened()}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// OutputTemplate returns the yt-dlp output template for this workspace.
func (w *Workspace) OutputTemplate() string {
	return filepath.Join(w.dir, outputBasename+".%(ext)s")
}

// Locate returns the first regular file in the workspace with extension ext.
func (w *Workspace) Locate(ext string) (*entity.Artifact, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}

	suffix := "." + strings.TrimPrefix(ext, ".")

	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat artifact: %w", err)
		}

		path := filepath.Join(w.dir, e.Name())
		w.artifact = path

		return &entity.Artifact{
			Path: path,
			Ext:  strings.TrimPrefix(filepath.Ext(path), "."),
			Size: info.Size(),
		}, nil
	}

	return nil, fmt.Errorf("%w: no .%s file in %s", errs.ErrArtifactNotFound, strings.TrimPrefix(ext, "."), w.dir)
}

// Release deletes the located artifact, then the workspace with anything left in it.
// Only the first call does any work.
func (w *Workspace) Release(ctx context.Context) {
	w.once.Do(func() {
		w.storage.release(ctx, w)
	})
}

func (s *Storage) release(ctx context.Context, w *Workspace) {
	log := s.log.With(slog.String("dir", w.dir))

	if w.artifact != "" {
		if err := os.Remove(w.artifact); err != nil && !os.IsNotExist(err) {
			log.WarnContext(ctx, "failed to delete artifact", slog.String("file", w.artifact), slog.Any("error", err))
		}
	}

	if err := os.RemoveAll(w.dir); err != nil {
		s.metrics.RecordCleanupFailure()
		log.ErrorContext(ctx, "failed to delete workspace", slog.Any("error", err))
	}

	s.mu.Lock()
	delete(s.active, w.dir)
	s.mu.Unlock()

	w.done()

	log.DebugContext(ctx, "workspace released")
}

func (s *Storage) isActive(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active[dir]

	return ok
}
