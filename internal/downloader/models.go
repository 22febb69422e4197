package downloader

import (
	"log/slog"
	"strings"
	"time"

	"tubefetch/pkg/shellquote"
)

// Invocation describes one finished or failed yt-dlp run for logging.
type Invocation struct {
	Mode     Mode
	Binary   string
	Args     []string
	ExitCode int
	Duration time.Duration
	Output   string   // captured stderr in info mode
	Tail     []string // last output lines in download mode
}

// LogValue implements the slog.LogValuer interface for custom logging of Invocation.
func (i Invocation) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("mode", string(i.Mode)),
		slog.String("cmd", shellquote.Join(i.Binary, i.Args)),
		slog.Int("exit_code", i.ExitCode),
		slog.Duration("duration", i.Duration),
	}

	if i.Output != "" {
		attrs = append(attrs, slog.String("stderr", i.Output))
	}

	if len(i.Tail) > 0 {
		attrs = append(attrs, slog.String("output_tail", strings.Join(i.Tail, "\n")))
	}

	return slog.GroupValue(attrs...)
}
