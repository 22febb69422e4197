// Package shellquote builds command lines that can be pasted into a POSIX shell.
package shellquote

import (
	"github.com/alessio/shellescape"
)

// Quote returns s unchanged when it needs no quoting, otherwise wrapped in
// single quotes.
func Quote(s string) string {
	return shellescape.Quote(s)
}

// Join constructs a shell-pasteable command line from bin and args.
func Join(bin string, args []string) string {
	return shellescape.QuoteCommand(append([]string{bin}, args...))
}
