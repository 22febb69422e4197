package service

import (
	"regexp"

	"tubefetch/internal/consts"
)

const maxFormatIDLength = 128

var (
	reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9.-]`)
	// yt-dlp format ids and selectors, e.g. "137", "hls-1080p", "bestvideo+bestaudio/best"
	reFormatID = regexp.MustCompile(`^[A-Za-z0-9_.\-+/\[\]=<>:]+$`)
)

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with an
// underscore. An empty title becomes "video"; whitespace is replaced like
// any other unsafe character.
func SanitizeFilename(title string) string {
	if title == "" {
		return consts.DefaultTitle
	}

	return reUnsafeFilename.ReplaceAllString(title, "_")
}

// BuildFilename returns the download filename for title with the actual extension.
func BuildFilename(title, ext string) string {
	return SanitizeFilename(title) + "." + ext
}

// IsFormatIDValid reports whether id can be passed to yt-dlp as a format.
// An empty id selects the best available quality.
func IsFormatIDValid(id string) bool {
	return id == "" || (len(id) <= maxFormatIDLength && reFormatID.MatchString(id))
}
