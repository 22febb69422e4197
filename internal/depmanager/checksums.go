package depmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	sha256HexLength   = 64
	savedSumsFilename = ".sha256sums.json"
	maxSumsFileSize   = 1 << 20
)

// ParseSHASums parses "hash  filename" lines as written by sha256sum.
// Malformed lines are skipped.
func ParseSHASums(content string) map[string]string {
	sums := make(map[string]string)

	for line := range strings.Lines(content) {
		fields := strings.Fields(line)
		if len(fields) != 2 || len(fields[0]) != sha256HexLength {
			continue
		}

		// "*" marks binary mode in sha256sum output
		sums[strings.TrimPrefix(fields[1], "*")] = strings.ToLower(fields[0])
	}

	return sums
}

// FetchSHASums downloads the checksum lists of every dependency.
func (m *Manager) FetchSHASums(ctx context.Context) error {
	fetched := make(map[string]string)

	for _, dep := range m.deps {
		for _, sumsURL := range dep.sumsURLs {
			content, err := m.fetchText(ctx, sumsURL)
			if err != nil {
				return fmt.Errorf("%s sums: %w", dep.name, err)
			}

			maps.Copy(fetched, ParseSHASums(content))
		}
	}

	m.mu.Lock()
	maps.Copy(m.remoteSums, fetched)
	m.mu.Unlock()

	m.log.DebugContext(ctx, "fetched checksums", slog.Int("count", len(fetched)))

	return nil
}

func (m *Manager) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSumsFileSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(body), nil
}

// remoteSum returns the published checksum of an artifact, if known.
func (m *Manager) remoteSum(asset string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum, ok := m.remoteSums[asset]

	return sum, ok
}

func (m *Manager) loadSavedSums() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.DepManager.BinsDir, savedSumsFilename))
	if err != nil {
		return fmt.Errorf("read checksums file: %w", err)
	}

	saved := make(map[string]string)
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("unmarshal checksums: %w", err)
	}

	m.mu.Lock()
	m.savedSums = saved
	m.mu.Unlock()

	return nil
}

// saveSums persists the fetched checksums as the installed state.
func (m *Manager) saveSums() error {
	m.mu.RLock()
	snapshot := maps.Clone(m.remoteSums)
	m.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checksums: %w", err)
	}

	err = os.WriteFile(filepath.Join(m.cfg.DepManager.BinsDir, savedSumsFilename), data, filePermReadWrite)
	if err != nil {
		return fmt.Errorf("write checksums file: %w", err)
	}

	m.mu.Lock()
	m.savedSums = snapshot
	m.mu.Unlock()

	return nil
}

// findUpdates returns dependencies whose published checksum differs from the installed one.
func (m *Manager) findUpdates() []dependency {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var updates []dependency

	for _, dep := range m.deps {
		asset := dep.assetName(m.platform)
		if asset == "" {
			continue
		}

		newSum, hasNew := m.remoteSums[asset]
		oldSum, hasOld := m.savedSums[asset]

		if hasNew && (!hasOld || newSum != oldSum) {
			updates = append(updates, dep)
		}
	}

	return updates
}
