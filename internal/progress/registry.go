// Package progress tracks download progress per key and streams changes to watchers.
package progress

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/consts"
	"tubefetch/internal/errs"
	"tubefetch/pkg/urls"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a progress entry.
type Status int

const (
	// StatusIdle means someone is watching but no download has started.
	StatusIdle Status = iota
	// StatusRunning means a download is reporting progress.
	StatusRunning
	// StatusDone means the download finished.
	StatusDone
	// StatusFailed means the download ended without finishing.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Update is one value delivered to a watcher. Done or a non-nil Err is always the last update.
type Update struct {
	Progress float64
	Done     bool
	Err      error
}

// entry is guarded by Registry.mu.
type entry struct {
	value    float64
	status   Status
	err      error
	changed  chan struct{} // closed and replaced on every mutation
	watchers int
}

func newEntry(status Status) *entry {
	return &entry{status: status, changed: make(chan struct{})}
}

func (e *entry) notify() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// Registry maps keys to the latest progress of a download.
type Registry struct {
	log         *slog.Logger
	interval    time.Duration
	waitTimeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a registry using the progress interval and wait timeout from cfg.
func New(log *slog.Logger, cfg *config.Config) *Registry {
	return &Registry{
		log:         log.With(slog.String("package", "progress")),
		interval:    cfg.Progress.Interval,
		waitTimeout: cfg.Progress.WaitTimeout,
		entries:     make(map[string]*entry),
	}
}

// Key returns the registry key for a download: the client supplied id when
// present, otherwise a stable UUID derived from the normalized URL.
func Key(url, id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("progress|"+urls.Normalize(url))).String()
}

// Set records value for key, creating a running entry if needed.
// Reaching 100 marks the entry done.
func (r *Registry) Set(key string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = newEntry(StatusRunning)
		r.entries[key] = e
	}

	// a watcher may have created the entry before the download started
	if e.status == StatusIdle {
		e.status = StatusRunning
		e.notify()
	}

	value = clamp(value)
	if value >= consts.FullProgress {
		r.finishLocked(e, StatusDone, nil)

		return
	}

	r.setLocked(e, value)
}

// Get returns the latest value for key, 0 when there is none.
func (r *Registry) Get(key string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e.value
	}

	return 0
}

// Remove deletes key. An entry that has not finished is failed first so its
// watchers stop.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		r.removeLocked(key, e)
	}
}

// Begin starts a download session for key. Watchers already waiting on key
// follow the new session. A key still owned by another session is handed over;
// that session keeps updating only its own watchers.
func (r *Registry) Begin(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok || e.status != StatusIdle {
		e = newEntry(StatusRunning)
		r.entries[key] = e
	} else {
		e.status = StatusRunning
		e.notify()
	}

	r.log.Debug("progress session started", slog.String("key", key))

	return &Session{registry: r, key: key, entry: e}
}

// Watch streams updates for key until the download finishes or fails, ctx
// ends, or no download starts within the wait timeout. The current value is
// sent first; after that only changed values, at most once per interval.
// The channel is closed after the last update.
func (r *Registry) Watch(ctx context.Context, key string) <-chan Update {
	r.mu.Lock()

	e, ok := r.entries[key]
	if !ok {
		e = newEntry(StatusIdle)
		r.entries[key] = e
	}

	e.watchers++
	r.mu.Unlock()

	out := make(chan Update, 1)

	go r.watch(ctx, key, e, out)

	return out
}

type snapshot struct {
	value   float64
	status  Status
	err     error
	changed <-chan struct{}
}

func (r *Registry) snapshot(e *entry) snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return snapshot{value: e.value, status: e.status, err: e.err, changed: e.changed}
}

func (r *Registry) watch(ctx context.Context, key string, e *entry, out chan<- Update) {
	defer close(out)
	defer r.release(key, e)

	send := func(u Update) bool {
		select {
		case out <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var timeout <-chan time.Time

	if r.waitTimeout > 0 {
		timer := time.NewTimer(r.waitTimeout)
		defer timer.Stop()

		timeout = timer.C
	}

	var (
		last     = -1.0
		lastSent time.Time
	)

	for {
		snap := r.snapshot(e)

		if snap.status != StatusIdle {
			timeout = nil
		}

		switch snap.status {
		case StatusDone:
			send(Update{Progress: consts.FullProgress, Done: true})

			return
		case StatusFailed:
			send(Update{Progress: snap.value, Err: snap.err})

			return
		}

		if snap.value != last {
			if wait := r.interval - time.Since(lastSent); !lastSent.IsZero() && wait > 0 {
				// coalesce: whatever is current when the interval ends gets sent
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}

				continue
			}

			if !send(Update{Progress: snap.value}) {
				return
			}

			last = snap.value
			lastSent = time.Now()
		}

		select {
		case <-ctx.Done():
			return
		case <-timeout:
			send(Update{Progress: snap.value, Err: errs.ErrProgressWaitTimeout})

			return
		case <-snap.changed:
		}
	}
}

// release drops a watcher and forgets idle entries nobody waits on.
func (r *Registry) release(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.watchers--

	if e.status == StatusIdle && e.watchers == 0 && r.entries[key] == e {
		delete(r.entries, key)
	}
}

func (r *Registry) setLocked(e *entry, value float64) {
	if e.status.terminal() || e.value == value {
		return
	}

	e.value = value
	e.notify()
}

func (r *Registry) finishLocked(e *entry, status Status, err error) {
	if e.status.terminal() {
		return
	}

	if status == StatusDone {
		e.value = consts.FullProgress
	}

	e.status = status
	e.err = err
	e.notify()
}

func (r *Registry) removeLocked(key string, e *entry) {
	r.finishLocked(e, StatusFailed, errs.ErrDownloadAborted)

	if r.entries[key] == e {
		delete(r.entries, key)
	}
}

func clamp(value float64) float64 {
	return max(0, min(value, consts.FullProgress))
}

// Session is the handle a single download uses to publish its progress.
type Session struct {
	registry *Registry
	key      string
	entry    *entry
}

// Key returns the registry key of the session.
func (s *Session) Key() string {
	return s.key
}

// Set publishes a progress value. Only Complete finishes the session, so a
// stream reaching 100 before merging does not end it.
func (s *Session) Set(value float64) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	s.registry.setLocked(s.entry, clamp(value))
}

// Complete marks the download finished.
func (s *Session) Complete() {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	s.registry.finishLocked(s.entry, StatusDone, nil)
}

// Fail marks the download failed with err.
func (s *Session) Fail(err error) {
	if err == nil {
		err = errs.ErrDownloadAborted
	}

	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	s.registry.finishLocked(s.entry, StatusFailed, err)
}

// Close ends the session, failing it with ErrDownloadAborted unless it
// already completed or failed, and removes its key. Safe to call more than once.
func (s *Session) Close() {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	s.registry.removeLocked(s.key, s.entry)
	s.registry.log.Debug("progress session closed", slog.String("key", s.key), slog.String("status", s.entry.status.String()))
}
