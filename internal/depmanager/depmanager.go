// Package depmanager installs and updates the external tools the downloader runs:
// yt-dlp, ffmpeg with ffprobe, and deno.
// Release checksums detect new versions and verify downloaded artifacts.
package depmanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/errs"
)

const (
	downloadTimeout    = 10 * time.Minute
	filePermExecutable = 0o755
	filePermReadWrite  = 0o644
	platformWindows    = "windows"
)

// Manager resolves binary locations and keeps downloaded binaries current.
type Manager struct {
	log      *slog.Logger
	cfg      *config.Config
	platform Platform
	client   *http.Client
	deps     []dependency

	mu         sync.RWMutex
	remoteSums map[string]string     // asset -> sha256 published by the release
	savedSums  map[string]string     // asset -> sha256 of the installed artifact
	binPaths   map[BinaryName]string // binary -> installed path

	updating atomic.Bool
}

// New creates a dependency manager for the running platform.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	return &Manager{
		log:        log.With(slog.String("package", "depmanager")),
		cfg:        cfg,
		platform:   Platform{OS: runtime.GOOS, Arch: runtime.GOARCH},
		client:     &http.Client{Timeout: downloadTimeout},
		deps:       dependencies(cfg.DepManager),
		remoteSums: make(map[string]string),
		savedSums:  make(map[string]string),
		binPaths:   make(map[BinaryName]string),
	}
}

// Start resolves every binary, either from PATH or by installing it into
// BinsDir, and then keeps installed binaries updated until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.DepManager.UseSystemBinaries {
		return m.SetSystemBinaries()
	}

	if err := m.InstallAll(ctx); err != nil {
		return err
	}

	m.StartUpdateChecker(ctx)

	return nil
}

// SetSystemBinaries looks every binary up in PATH. Missing optional binaries are skipped.
func (m *Manager) SetSystemBinaries() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dep := range m.deps {
		for _, bin := range dep.provides {
			path, err := exec.LookPath(string(bin))
			if err != nil {
				if dep.optional {
					m.log.Warn("optional binary not found in PATH", slog.String("binary", string(bin)))

					continue
				}

				return fmt.Errorf("%w: %s: %w", errs.ErrBinaryNotFound, bin, err)
			}

			m.binPaths[bin] = path
		}
	}

	m.log.Info("using system binaries", slog.Any("binaries", m.binPaths))

	return nil
}

// InstallAll installs every binary missing from BinsDir.
// Binaries already present are kept; the update checker replaces them later.
func (m *Manager) InstallAll(ctx context.Context) error {
	log := m.log

	if err := os.MkdirAll(m.cfg.DepManager.BinsDir, filePermExecutable); err != nil {
		return fmt.Errorf("create bins directory: %w", err)
	}

	if err := m.loadSavedSums(); err != nil {
		log.DebugContext(ctx, "no saved checksums, first run", slog.Any("error", err))
	}

	// without checksums downloads are installed unverified
	fetchErr := m.FetchSHASums(ctx)
	if fetchErr != nil {
		log.WarnContext(ctx, "failed to fetch checksums", slog.Any("error", fetchErr))
	}

	for _, dep := range m.deps {
		if m.isInstalled(dep) {
			m.setInstalled(dep)
			log.DebugContext(ctx, "binary already installed", slog.String("binary", string(dep.name)))

			continue
		}

		err := m.install(ctx, dep)
		if err != nil && dep.optional {
			log.WarnContext(ctx, "optional binary not installed",
				slog.String("binary", string(dep.name)), slog.Any("error", err))

			continue
		}

		if err != nil {
			return fmt.Errorf("install %s: %w", dep.name, err)
		}
	}

	m.mu.RLock()
	log.InfoContext(ctx, "binaries installed", slog.Any("binaries", m.binPaths))
	m.mu.RUnlock()

	if fetchErr != nil {
		return nil
	}

	if err := m.saveSums(); err != nil {
		log.WarnContext(ctx, "failed to save checksums", slog.Any("error", err))
	}

	return nil
}

// GetBinaryPath returns where a binary lives inside BinsDir.
func (m *Manager) GetBinaryPath(name BinaryName) string {
	filename := string(name)
	if m.platform.OS == platformWindows {
		filename += ".exe"
	}

	return filepath.Join(m.cfg.DepManager.BinsDir, filename)
}

// GetInstalledPath returns the resolved path of a binary, or "" when it is not available.
func (m *Manager) GetInstalledPath(name BinaryName) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.binPaths[name]
}

// StartUpdateChecker reinstalls binaries whose published checksum changed,
// every UpdateInterval until ctx is done.
func (m *Manager) StartUpdateChecker(ctx context.Context) {
	if m.cfg.DepManager.UpdateInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.DepManager.UpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAndUpdate(ctx)
			}
		}
	}()
}

func (m *Manager) checkAndUpdate(ctx context.Context) {
	if !m.updating.CompareAndSwap(false, true) {
		return
	}
	defer m.updating.Store(false)

	log := m.log

	if err := m.FetchSHASums(ctx); err != nil {
		log.WarnContext(ctx, "update check: failed to fetch checksums", slog.Any("error", err))

		return
	}

	updates := m.findUpdates()
	if len(updates) == 0 {
		log.DebugContext(ctx, "update check: no updates available")

		return
	}

	for _, dep := range updates {
		if err := m.install(ctx, dep); err != nil {
			log.ErrorContext(ctx, "update check: failed to update binary",
				slog.String("binary", string(dep.name)), slog.Any("error", err))

			continue
		}

		log.InfoContext(ctx, "update check: binary updated", slog.String("binary", string(dep.name)))
	}

	if err := m.saveSums(); err != nil {
		log.WarnContext(ctx, "update check: failed to save checksums", slog.Any("error", err))
	}
}

func (m *Manager) isInstalled(dep dependency) bool {
	for _, bin := range dep.provides {
		info, err := os.Stat(m.GetBinaryPath(bin))
		if err != nil || info.Size() == 0 {
			return false
		}
	}

	return true
}

func (m *Manager) setInstalled(dep dependency) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bin := range dep.provides {
		m.binPaths[bin] = m.GetBinaryPath(bin)
	}
}

// install downloads the artifact of dep, verifies it when a checksum is
// published and places its binaries into BinsDir.
func (m *Manager) install(ctx context.Context, dep dependency) error {
	artifactURL, err := dep.url(m.platform)
	if err != nil {
		return err
	}

	log := m.log.With(slog.String("binary", string(dep.name)))
	log.InfoContext(ctx, "downloading binary", slog.String("url", artifactURL))

	tmpPath, err := m.download(ctx, artifactURL, dep.assetName(m.platform))
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	binsDir := m.cfg.DepManager.BinsDir

	if kind := archiveOf(dep.assetName(m.platform)); kind != archiveNone {
		targets := make([]string, 0, len(dep.provides))
		for _, bin := range dep.provides {
			targets = append(targets, filepath.Base(m.GetBinaryPath(bin)))
		}

		if err := extract(kind, tmpPath, binsDir, targets); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
	} else {
		if err := os.Chmod(tmpPath, filePermExecutable); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}

		if err := os.Rename(tmpPath, m.GetBinaryPath(dep.name)); err != nil {
			return fmt.Errorf("rename: %w", err)
		}
	}

	m.setInstalled(dep)
	log.InfoContext(ctx, "binary installed", slog.String("path", m.GetBinaryPath(dep.name)))

	return nil
}

// download stores the artifact in a temp file inside BinsDir and returns its path.
func (m *Manager) download(ctx context.Context, artifactURL, asset string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: unexpected status: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.cfg.DepManager.BinsDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	hash := sha256.New()

	_, err = io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(tmp.Name())

		return "", fmt.Errorf("write file: %w", err)
	}

	if want, ok := m.remoteSum(asset); ok {
		if got := hex.EncodeToString(hash.Sum(nil)); got != want {
			os.Remove(tmp.Name())

			return "", fmt.Errorf("checksum mismatch for %s: got %s, want %s", asset, got, want)
		}
	}

	return tmp.Name(), nil
}
