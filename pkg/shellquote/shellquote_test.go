package shellquote_test

import (
	"testing"

	"tubefetch/pkg/shellquote"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bin  string
		args []string
		want string
	}{
		{
			name: "no args",
			bin:  "/usr/bin/yt-dlp",
			want: "/usr/bin/yt-dlp",
		},
		{
			name: "simple args",
			bin:  "/usr/bin/yt-dlp",
			args: []string{"--dump-json", "https://example.com/watch?v=1"},
			want: "/usr/bin/yt-dlp --dump-json 'https://example.com/watch?v=1'",
		},
		{
			name: "spaces are preserved via quotes",
			bin:  "/opt/my tools/yt-dlp",
			args: []string{"--user-agent", "Mozilla/5.0 (X11)"},
			want: "'/opt/my tools/yt-dlp' --user-agent 'Mozilla/5.0 (X11)'",
		},
		{
			name: "output template and selector",
			bin:  "yt-dlp",
			args: []string{"-f", "22+bestaudio[ext=m4a]/best", "-o", "/tmp/video.%(ext)s"},
			want: "yt-dlp -f '22+bestaudio[ext=m4a]/best' -o '/tmp/video.%(ext)s'",
		},
		{
			name: "single quote and empty arg",
			bin:  "yt-dlp",
			args: []string{"it's", ""},
			want: `yt-dlp 'it'"'"'s' ''`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := shellquote.Join(tt.bin, tt.args); got != tt.want {
				t.Errorf("Join() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":            "''",
		"--newline":   "--newline",
		"a b":         "'a b'",
		"$HOME":       "'$HOME'",
		"deno:/bin/d": "deno:/bin/d",
	}

	for in, want := range tests {
		if got := shellquote.Quote(in); got != want {
			t.Errorf("Quote(%q) = %s, want %s", in, got, want)
		}
	}
}
