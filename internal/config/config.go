// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	HTTP       HTTP
	App        App
	Tool       Tool
	Dir        Dir
	Storage    Storage
	Cache      Cache
	Progress   Progress
	DepManager DepManager
	Proxy      Proxy
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"TUBEFETCH_APP_LOG_LEVEL" envDefault:"info"`
	// "ytdlp" or "mock"; mock serves canned metadata and a generated file without any binaries
	Downloader string `env:"TUBEFETCH_APP_DOWNLOADER" envDefault:"ytdlp"`
}

// HTTP holds HTTP server configuration.
type HTTP struct {
	Port            string        `env:"TUBEFETCH_HTTP_PORT"             envDefault:":8080"`
	HandlerTimeout  time.Duration `env:"TUBEFETCH_HTTP_HANDLER_TIMEOUT"  envDefault:"2m"`
	DownloadTimeout time.Duration `env:"TUBEFETCH_HTTP_DOWNLOAD_TIMEOUT" envDefault:"30m"`
	ShutdownTimeout time.Duration `env:"TUBEFETCH_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// comma-separated list of origins allowed by CORS, "*" allows any origin
	AllowedOrigins []string `env:"TUBEFETCH_HTTP_ALLOWED_ORIGINS" envDefault:"https://tubefetch-yt.netlify.app" envSeparator:","` //nolint:lll

	// requests per second accepted on /api routes, 0 disables limiting
	RateLimit float64 `env:"TUBEFETCH_HTTP_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"TUBEFETCH_HTTP_RATE_BURST" envDefault:"20"`
}

// Tool holds settings passed to yt-dlp.
type Tool struct {
	// explicit binary locations; when empty the dependency manager decides
	YTdlpPath  string `env:"TUBEFETCH_TOOL_YTDLP_PATH"  envDefault:""`
	FFmpegPath string `env:"TUBEFETCH_TOOL_FFMPEG_PATH" envDefault:""`

	UserAgent     string `env:"TUBEFETCH_TOOL_USER_AGENT"     envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"` //nolint:lll
	ExtractorArgs string `env:"TUBEFETCH_TOOL_EXTRACTOR_ARGS" envDefault:"youtube:player_client=android,web;player_skip=web"`                                                          //nolint:lll
}

// Dir holds directory paths for temporary workspaces, yt-dlp cache and cookie file.
type Dir struct {
	Temp  string `env:"TUBEFETCH_DIR_TEMP"  envDefault:""`             // workspaces are created here, os.TempDir() if empty
	Cache string `env:"TUBEFETCH_DIR_CACHE" envDefault:"./data/cache"` // yt-dlp cache (meta, sigs)

	// must contain cookies.txt file
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"TUBEFETCH_DIR_COOKIE_FILE" envDefault:""`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error

	if c.Temp == "" {
		c.Temp = os.TempDir()
	}

	if c.Temp, err = filepath.Abs(c.Temp); err != nil {
		return fmt.Errorf("temp: %w", err)
	}

	if c.Cache != "" {
		if c.Cache, err = filepath.Abs(c.Cache); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	return nil
}

// Storage holds temporary workspace housekeeping configuration.
type Storage struct {
	// orphaned workspaces older than this are removed by the sweeper
	TTL           time.Duration `env:"TUBEFETCH_STORAGE_TTL"            envDefault:"6h"`
	SweepInterval time.Duration `env:"TUBEFETCH_STORAGE_SWEEP_INTERVAL" envDefault:"1h"`
}

// Cache holds video metadata cache configuration.
type Cache struct {
	Size int           `env:"TUBEFETCH_CACHE_SIZE" envDefault:"256"`
	TTL  time.Duration `env:"TUBEFETCH_CACHE_TTL"  envDefault:"30m"`

	// optional shared second level, e.g. redis://localhost:6379/0; empty keeps the cache in memory only
	RedisURL string `env:"TUBEFETCH_CACHE_REDIS_URL" envDefault:""`
}

// Progress holds progress streaming configuration.
type Progress struct {
	// minimum delay between two emitted values of one stream
	Interval time.Duration `env:"TUBEFETCH_PROGRESS_INTERVAL" envDefault:"400ms"`
	// how long a stream waits for a download to start, 0 waits forever
	WaitTimeout time.Duration `env:"TUBEFETCH_PROGRESS_WAIT_TIMEOUT" envDefault:"5m"`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	cfg.HTTP.AllowedOrigins = trimList(cfg.HTTP.AllowedOrigins)
	cfg.Proxy.parseList()

	return cfg, nil
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is the directory where binaries are stored
	BinsDir string `env:"TUBEFETCH_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// UseSystemBinaries indicates whether to use system-installed binaries or download them.
	UseSystemBinaries bool `env:"TUBEFETCH_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"false"`
	// UpdateInterval is how often to check for binary updates
	UpdateInterval time.Duration `env:"TUBEFETCH_DEPMANAGER_UPDATE_INTERVAL" envDefault:"24h"`

	// ffmpeg binary URLs per platform.
	FFmpegSHA256SumsURL string `env:"TUBEFETCH_DEPMANAGER_FFMPEG_SHA256SUMS_URL" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/checksums.sha256"`                        //nolint:lll
	FFmpegLinuxARM64    string `env:"TUBEFETCH_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64    string `env:"TUBEFETCH_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll

	// yt-dlp binary URLs per platform.
	YTdlpSHA256SumsURL string `env:"TUBEFETCH_DEPMANAGER_YTDLP_SHA256SUMS_URL" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/SHA2-256SUMS"`      //nolint:lll
	YTdlpLinuxARM64    string `env:"TUBEFETCH_DEPMANAGER_YTDLP_LINUX_ARM64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64    string `env:"TUBEFETCH_DEPMANAGER_YTDLP_LINUX_AMD64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll

	// deno is used by yt-dlp to solve YouTube JS challenges.
	DenoSHA256SumsURL string `env:"TUBEFETCH_DEPMANAGER_DENO_SHA256SUMS_URL" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-aarch64-unknown-linux-gnu.zip.sha256sum,https://github.com/denoland/deno/releases/latest/download/deno-x86_64-unknown-linux-gnu.zip.sha256sum"` //nolint:lll
	DenoLinuxARM64    string `env:"TUBEFETCH_DEPMANAGER_DENO_LINUX_ARM64" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-aarch64-unknown-linux-gnu.zip"`                                                                                                                    //nolint:lll
	DenoLinuxAMD64    string `env:"TUBEFETCH_DEPMANAGER_DENO_LINUX_AMD64" envDefault:"https://github.com/denoland/deno/releases/latest/download/deno-x86_64-unknown-linux-gnu.zip"`                                                                                                                     //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// Proxy holds proxy configuration for yt-dlp invocations.
type Proxy struct {
	// List is a comma-separated list of proxy URLs in socks5h format
	List string `env:"TUBEFETCH_PROXY_LIST" envDefault:""`
	// HealthCheckInterval is how often to check proxy health
	HealthCheckInterval time.Duration `env:"TUBEFETCH_PROXY_HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	// FailureBackoff is the initial backoff duration for failed proxies
	FailureBackoff time.Duration `env:"TUBEFETCH_PROXY_FAILURE_BACKOFF" envDefault:"1m"`
	// MaxFailures is the maximum number of failures before a proxy is temporarily removed
	MaxFailures int `env:"TUBEFETCH_PROXY_MAX_FAILURES" envDefault:"3"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	if p.List == "" {
		return
	}

	p.Proxies = trimList(strings.Split(p.List, ","))
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}

	return out
}
