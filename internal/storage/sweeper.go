package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StartSweeper removes orphaned workspaces older than the storage TTL every
// sweep interval until ctx ends. Workspaces still in use are never touched.
func (s *Storage) StartSweeper(ctx context.Context) {
	interval := s.cfg.Storage.SweepInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := s.log.With(slog.String("action", "sweep_workspaces"), slog.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			log.Info("workspace sweeper stopped")

			return
		}
	}
}

// Sweep performs one pass and returns the number of removed workspaces.
func (s *Storage) Sweep(ctx context.Context) int {
	log := s.log

	entries, err := os.ReadDir(s.cfg.Dir.Temp)
	if err != nil {
		log.ErrorContext(ctx, "failed to read temp root", slog.Any("error", err))

		return 0
	}

	cutoff := time.Now().Add(-s.cfg.Storage.TTL)
	removed := 0

	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), workspacePrefix) {
			continue
		}

		dir := filepath.Join(s.cfg.Dir.Temp, e.Name())
		if s.isActive(dir) {
			continue
		}

		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			s.metrics.RecordCleanupFailure()
			log.ErrorContext(ctx, "failed to delete orphaned workspace", slog.String("dir", dir), slog.Any("error", err))

			continue
		}

		removed++

		log.DebugContext(ctx, "orphaned workspace deleted", slog.String("dir", dir))
	}

	if removed > 0 {
		s.metrics.RecordSweep(removed)
		log.InfoContext(ctx, "orphaned workspaces removed", slog.Int("count", removed))
	}

	return removed
}
