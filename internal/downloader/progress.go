package downloader

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"tubefetch/internal/consts"
)

var reDownloadPercent = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)

// ParseProgress extracts a progress percentage from a single yt-dlp output line.
// A line mentioning a merge step reports 99 regardless of any percentage on it.
func ParseProgress(line string) (float64, bool) {
	if strings.Contains(strings.ToLower(line), "merging") {
		return consts.MergingProgress, true
	}

	matches := reDownloadPercent.FindStringSubmatch(line)
	if len(matches) < 2 { //nolint:mnd
		return 0, false
	}

	progress, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}

	return progress, true
}

// splitLinesAny is a bufio.SplitFunc that treats \n, \r\n and a bare \r as line ends.
// yt-dlp redraws its progress bar with \r when --newline is not honoured.
func splitLinesAny(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil //nolint:mnd
				}

				return i + 1, data[:i], nil
			}

			// need one more byte to tell \r from \r\n
			if !atEOF {
				return 0, nil, nil
			}
		}

		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}
