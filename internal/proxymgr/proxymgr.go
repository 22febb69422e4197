// Package proxymgr rotates the proxies yt-dlp connects through.
// Proxies that keep failing are parked with exponential backoff and
// re-admitted by a background TCP health check.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"sync"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/errs"
	"tubefetch/internal/observability"

	"golang.org/x/sync/errgroup"
)

// State is the rotation state of a proxy.
type State int

const (
	// StateAvailable means the proxy is handed out.
	StateAvailable State = iota
	// StateBackoff means the proxy failed too often and is parked until its backoff ends.
	StateBackoff
)

func (s State) String() string {
	if s == StateBackoff {
		return "backoff"
	}

	return "available"
}

const (
	healthCheckTimeout = 10 * time.Second
	healthCheckWorkers = 4
	maxBackoff         = time.Hour
	maxBackoffShift    = 16

	defaultSOCKSPort = "1080"
	defaultHTTPPort  = "8080"
)

type proxy struct {
	url          string
	addr         string // host:port dialed by the health check
	state        State
	failures     int
	backoffUntil time.Time
}

// available reports whether the proxy can be handed out at now.
func (p *proxy) available(now time.Time) bool {
	return p.state == StateAvailable || now.After(p.backoffUntil)
}

// Manager hands out proxies and tracks their failures.
type Manager struct {
	log     *slog.Logger
	cfg     *config.Config
	metrics *observability.Metrics

	mu      sync.Mutex
	proxies []*proxy
	byURL   map[string]*proxy
}

// New creates a manager for the configured proxies. Entries that are not
// socks5, socks5h, http or https URLs are skipped with a warning.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) *Manager {
	m := &Manager{
		log:     log.With(slog.String("package", "proxymgr")),
		cfg:     cfg,
		metrics: metrics,
		proxies: make([]*proxy, 0, len(cfg.Proxy.Proxies)),
		byURL:   make(map[string]*proxy, len(cfg.Proxy.Proxies)),
	}

	for _, raw := range cfg.Proxy.Proxies {
		if _, dup := m.byURL[raw]; dup {
			continue
		}

		addr, err := dialAddr(raw)
		if err != nil {
			m.log.Warn("skipping proxy", slog.String("proxy", raw), slog.Any("error", err))

			continue
		}

		p := &proxy{url: raw, addr: addr}
		m.proxies = append(m.proxies, p)
		m.byURL[raw] = p
	}

	m.metrics.SetProxiesAvailable(len(m.proxies))

	return m
}

// GetRandomProxy returns a random proxy that is not in backoff.
func (m *Manager) GetRandomProxy() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := m.availableLocked(time.Now())
	if len(available) == 0 {
		return "", errs.ErrNoProxiesAvailable
	}

	return available[rand.IntN(len(available))].url, nil
}

// MarkFailed counts a failure. Reaching the configured maximum parks the
// proxy for FailureBackoff, doubled for every further failure.
func (m *Manager) MarkFailed(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byURL[proxyURL]
	if !ok {
		return
	}

	p.failures++
	m.metrics.RecordProxyFailure(proxyURL)

	if p.failures < m.cfg.Proxy.MaxFailures {
		return
	}

	shift := min(p.failures-m.cfg.Proxy.MaxFailures, maxBackoffShift)
	backoff := min(m.cfg.Proxy.FailureBackoff<<shift, maxBackoff)

	p.state = StateBackoff
	p.backoffUntil = time.Now().Add(backoff)

	m.metrics.SetProxiesAvailable(len(m.availableLocked(time.Now())))
	m.log.Warn("proxy parked",
		slog.String("proxy", proxyURL),
		slog.Int("failures", p.failures),
		slog.Duration("backoff", backoff))
}

// MarkSuccess makes the proxy available again and resets its failures.
func (m *Manager) MarkSuccess(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byURL[proxyURL]
	if !ok {
		return
	}

	p.state = StateAvailable
	p.failures = 0
	p.backoffUntil = time.Time{}

	m.metrics.SetProxiesAvailable(len(m.availableLocked(time.Now())))
}

// HealthCheck dials the proxy and records the outcome.
func (m *Manager) HealthCheck(ctx context.Context, proxyURL string) error {
	m.mu.Lock()
	p, ok := m.byURL[proxyURL]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown proxy %q", proxyURL)
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		m.MarkFailed(proxyURL)

		return fmt.Errorf("dial proxy: %w", err)
	}

	_ = conn.Close()

	m.MarkSuccess(proxyURL)

	return nil
}

// StartHealthChecker checks every proxy each HealthCheckInterval until ctx is done.
// It returns immediately when there is nothing to check.
func (m *Manager) StartHealthChecker(ctx context.Context) {
	if m.cfg.Proxy.HealthCheckInterval <= 0 || !m.HasProxies() {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.Proxy.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAll(ctx)
			}
		}
	}()

	m.log.Info("proxy health checker started",
		slog.Duration("interval", m.cfg.Proxy.HealthCheckInterval),
		slog.Int("proxies", len(m.proxies)))
}

func (m *Manager) checkAll(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(healthCheckWorkers)

	for _, p := range m.proxies {
		g.Go(func() error {
			if err := m.HealthCheck(ctx, p.url); err != nil {
				m.log.Debug("proxy health check failed", slog.String("proxy", p.url), slog.Any("error", err))
			}

			// one dead proxy must not cancel the others
			return nil
		})
	}

	_ = g.Wait()
}

// HasProxies reports whether any proxy is configured.
func (m *Manager) HasProxies() bool {
	return len(m.proxies) > 0
}

// AvailableCount returns the number of proxies not in backoff.
func (m *Manager) AvailableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.availableLocked(time.Now()))
}

// StateOf returns the state and failure count of a proxy.
func (m *Manager) StateOf(proxyURL string) (State, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byURL[proxyURL]
	if !ok {
		return StateAvailable, 0, false
	}

	if p.state == StateBackoff && p.available(time.Now()) {
		return StateAvailable, p.failures, true
	}

	return p.state, p.failures, true
}

func (m *Manager) availableLocked(now time.Time) []*proxy {
	out := make([]*proxy, 0, len(m.proxies))

	for _, p := range m.proxies {
		if p.available(now) {
			out = append(out, p)
		}
	}

	return out
}

// dialAddr returns host:port of a proxy URL, adding the scheme's default port.
func dialAddr(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}

	if u.Port() != "" {
		return u.Host, nil
	}

	switch u.Scheme {
	case "socks5", "socks5h":
		return net.JoinHostPort(u.Hostname(), defaultSOCKSPort), nil
	case "http", "https":
		return net.JoinHostPort(u.Hostname(), defaultHTTPPort), nil
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
