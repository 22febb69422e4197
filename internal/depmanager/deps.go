package depmanager

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"tubefetch/internal/config"
	"tubefetch/internal/errs"
)

// BinaryName is the executable name of an external tool.
type BinaryName string

// Binaries used to fetch and merge media.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
	// BinaryDeno solves YouTube JS challenges; yt-dlp works without it for most videos.
	BinaryDeno BinaryName = "deno"
)

// Platform is an OS and architecture pair.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// dependency is one release artifact and the binaries installed from it.
type dependency struct {
	name     BinaryName
	provides []BinaryName
	optional bool
	urls     map[string]string // platform -> artifact URL
	sumsURLs []string
}

func dependencies(cfg config.DepManager) []dependency {
	return []dependency{
		{
			name:     BinaryFFmpeg,
			provides: []BinaryName{BinaryFFmpeg, BinaryFFprobe},
			urls: map[string]string{
				"linux/arm64": cfg.FFmpegLinuxARM64,
				"linux/amd64": cfg.FFmpegLinuxAMD64,
			},
			sumsURLs: splitURLs(cfg.FFmpegSHA256SumsURL),
		},
		{
			name:     BinaryDeno,
			provides: []BinaryName{BinaryDeno},
			optional: true,
			urls: map[string]string{
				"linux/arm64": cfg.DenoLinuxARM64,
				"linux/amd64": cfg.DenoLinuxAMD64,
			},
			sumsURLs: splitURLs(cfg.DenoSHA256SumsURL),
		},
		{
			name:     BinaryYTdlp,
			provides: []BinaryName{BinaryYTdlp},
			urls: map[string]string{
				"linux/arm64": cfg.YTdlpLinuxARM64,
				"linux/amd64": cfg.YTdlpLinuxAMD64,
			},
			sumsURLs: splitURLs(cfg.YTdlpSHA256SumsURL),
		},
	}
}

// url returns the artifact URL for p.
func (d dependency) url(p Platform) (string, error) {
	u := d.urls[p.String()]
	if u == "" {
		return "", fmt.Errorf("%w: no %s build for %s", errs.ErrUnsupportedPlatform, d.name, p)
	}

	return u, nil
}

// assetName returns the artifact file name as listed in the release checksums.
func (d dependency) assetName(p Platform) string {
	raw, err := d.url(p)
	if err != nil {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}

	return path.Base(u.Path)
}

type archiveKind int

const (
	archiveNone archiveKind = iota
	archiveZip
	archiveTarXZ
	archiveTarGZ
)

func archiveOf(name string) archiveKind {
	switch {
	case strings.HasSuffix(name, ".zip"):
		return archiveZip
	case strings.HasSuffix(name, ".tar.xz"):
		return archiveTarXZ
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return archiveTarGZ
	default:
		return archiveNone
	}
}

func splitURLs(raw string) []string {
	var out []string

	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
