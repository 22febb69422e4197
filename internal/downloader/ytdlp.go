package downloader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"tubefetch/internal/config"
	"tubefetch/internal/consts"
	"tubefetch/internal/depmanager"
	"tubefetch/internal/errs"
	"tubefetch/internal/observability"
	"tubefetch/internal/proxymgr"
	"tubefetch/pkg/shellquote"
)

// tailLines is how many trailing output lines are kept for failure logs.
const tailLines = 20

// YTdlp runs the yt-dlp binary.
type YTdlp struct {
	log      *slog.Logger
	cfg      *config.Config
	depMgr   *depmanager.Manager
	proxyMgr *proxymgr.Manager
	metrics  *observability.Metrics
	runner   Runner
}

// NewYTdlp creates a new YTdlp downloader instance.
// depMgr and proxyMgr may be nil; binaries are then looked up in PATH and no proxy is used.
func NewYTdlp(
	log *slog.Logger,
	cfg *config.Config,
	depMgr *depmanager.Manager,
	proxyMgr *proxymgr.Manager,
	metrics *observability.Metrics,
) *YTdlp {
	return &YTdlp{
		log:      log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderYTdlp)),
		cfg:      cfg,
		depMgr:   depMgr,
		proxyMgr: proxyMgr,
		metrics:  metrics,
	}
}

// Info runs yt-dlp in metadata mode and returns its stdout.
func (d *YTdlp) Info(ctx context.Context, url string) ([]byte, error) {
	proxy := d.pickProxy(ctx)
	bin := d.binary(depmanager.BinaryYTdlp, d.cfg.Tool.YTdlpPath)
	args := InfoArgs(d.options(proxy), url)

	inv := Invocation{Mode: ModeInfo, Binary: bin, Args: args}
	log := d.log.With(slog.String("url", url))
	log.DebugContext(ctx, "executing yt-dlp", slog.String("cmd", shellquote.Join(bin, args)))

	start := time.Now()

	proc, err := d.runner.Start(ctx, ModeInfo, bin, args)
	if err != nil {
		return nil, d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: %w", errs.ErrExternalTool, err))
	}

	out, readErr := proc.Output()
	code, waitErr := proc.Wait()

	inv.ExitCode = code
	inv.Duration = time.Since(start)
	inv.Output = proc.Stderr()

	switch {
	case waitErr != nil:
		return nil, d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: %w", errs.ErrExternalTool, waitErr))
	case code != 0:
		return nil, d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: exit code %d", errs.ErrExternalTool, code))
	case readErr != nil:
		return nil, d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: %w", errs.ErrExternalTool, readErr))
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: %w", errs.ErrExternalTool, errs.ErrEmptyOutput))
	}

	d.succeed(ctx, log, inv, proxy)

	return out, nil
}

// Download runs yt-dlp in download mode, reporting parsed progress to onProgress.
func (d *YTdlp) Download(ctx context.Context, params DownloadParams, onProgress ProgressFunc) error {
	proxy := d.pickProxy(ctx)
	bin := d.binary(depmanager.BinaryYTdlp, d.cfg.Tool.YTdlpPath)
	args := DownloadArgs(d.options(proxy), params)

	inv := Invocation{Mode: ModeDownload, Binary: bin, Args: args}
	log := d.log.With(slog.String("url", params.URL), slog.String("format", params.FormatID))
	log.DebugContext(ctx, "executing yt-dlp", slog.String("cmd", shellquote.Join(bin, args)))

	start := time.Now()

	proc, err := d.runner.Start(ctx, ModeDownload, bin, args)
	if err != nil {
		return d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: %w", errs.ErrExternalTool, err))
	}

	tail := make([]string, 0, tailLines)

	for line := range proc.Lines() {
		log.DebugContext(ctx, "yt-dlp", slog.String("line", line))

		if len(tail) == tailLines {
			tail = tail[1:]
		}

		tail = append(tail, line)

		if progress, ok := ParseProgress(line); ok && onProgress != nil {
			onProgress(progress)
		}
	}

	code, waitErr := proc.Wait()

	inv.ExitCode = code
	inv.Duration = time.Since(start)
	inv.Tail = tail

	switch {
	case waitErr != nil:
		return d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: %w", errs.ErrExternalTool, waitErr))
	case code != 0:
		return d.fail(ctx, log, inv, proxy, fmt.Errorf("%w: exit code %d", errs.ErrExternalTool, code))
	}

	d.succeed(ctx, log, inv, proxy)

	return nil
}

func (d *YTdlp) options(proxy string) Options {
	opts := Options{
		UserAgent:     d.cfg.Tool.UserAgent,
		ExtractorArgs: d.cfg.Tool.ExtractorArgs,
		FFmpegPath:    d.binary(depmanager.BinaryFFmpeg, d.cfg.Tool.FFmpegPath),
		CacheDir:      d.cfg.Dir.Cache,
		CookieFile:    d.cfg.Dir.CookieFile,
		Proxy:         proxy,
	}

	// deno is optional, only pass it when it is actually installed
	if d.depMgr != nil {
		opts.DenoPath = d.depMgr.GetInstalledPath(depmanager.BinaryDeno)
	}

	return opts
}

// binary resolves a binary location: explicit config path, then the dependency
// manager's installed path, then its default location. Without a manager the
// bare name is returned for PATH lookup.
func (d *YTdlp) binary(name depmanager.BinaryName, explicit string) string {
	if explicit != "" {
		return explicit
	}

	if d.depMgr == nil {
		return string(name)
	}

	if path := d.depMgr.GetInstalledPath(name); path != "" {
		return path
	}

	return d.depMgr.GetBinaryPath(name)
}

func (d *YTdlp) pickProxy(ctx context.Context) string {
	if d.proxyMgr == nil || !d.proxyMgr.HasProxies() {
		return ""
	}

	proxy, err := d.proxyMgr.GetRandomProxy()
	if err != nil {
		d.log.WarnContext(ctx, "proceeding without proxy", slog.Any("error", err))

		return ""
	}

	d.metrics.RecordProxyRequest(proxy)

	return proxy
}

func (d *YTdlp) fail(ctx context.Context, log *slog.Logger, inv Invocation, proxy string, err error) error {
	log.ErrorContext(ctx, "yt-dlp failed", slog.Any("error", err), slog.Any("invocation", inv))

	errType := classifyProcessingError(err)
	d.metrics.RecordDownloaderRequest(string(inv.Mode), "error")
	d.metrics.RecordDownloaderError(string(inv.Mode), errType)

	// a canceled request says nothing about the proxy
	if proxy != "" && errType != "canceled" {
		d.proxyMgr.MarkFailed(proxy)
	}

	return err
}

func (d *YTdlp) succeed(ctx context.Context, log *slog.Logger, inv Invocation, proxy string) {
	log.DebugContext(ctx, "yt-dlp finished", slog.Any("invocation", inv))

	d.metrics.RecordDownloaderRequest(string(inv.Mode), "success")

	if proxy != "" {
		d.proxyMgr.MarkSuccess(proxy)
	}
}
