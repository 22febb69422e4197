package downloader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strings"
	"time"
)

// Mode selects how a child process' output streams are captured.
type Mode string

const (
	// ModeInfo keeps stdout as the primary stream and captures stderr separately.
	ModeInfo Mode = "info"
	// ModeDownload merges stderr into stdout so progress and errors arrive in order.
	ModeDownload Mode = "download"
)

const (
	bufSize     = 64 * 1024
	maxLineSize = 16 * 1024 * 1024 // a single --dump-json document can be several MiB
	waitDelay   = 5 * time.Second
)

// Runner starts external tool processes.
type Runner struct{}

// Process is a started child process.
type Process struct {
	ctx     context.Context
	cmd     *exec.Cmd
	primary io.ReadCloser
	stderr  *bytes.Buffer
	scanErr error
	stop    func() bool
}

// Start launches bin with args. The process is killed when ctx is done.
func (Runner) Start(ctx context.Context, mode Mode, bin string, args []string) (*Process, error) {
	if mode != ModeInfo && mode != ModeDownload {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	proc := &Process{ctx: ctx, cmd: cmd, primary: stdout}

	if mode == ModeDownload {
		// same *os.File as stdout, so writes from both streams interleave in one pipe
		cmd.Stderr = cmd.Stdout
	} else {
		proc.stderr = &bytes.Buffer{}
		cmd.Stderr = proc.stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	// grandchildren such as ffmpeg may keep the pipe open after yt-dlp is killed
	proc.stop = context.AfterFunc(ctx, func() { _ = stdout.Close() })

	return proc, nil
}

// Lines yields the primary stream line by line. \n, \r\n and \r all end a line.
func (p *Process) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(p.primary)
		scanner.Buffer(make([]byte, bufSize), maxLineSize)
		scanner.Split(splitLinesAny)

		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}

		p.scanErr = scanner.Err()
	}
}

// Output reads the whole primary stream.
func (p *Process) Output() ([]byte, error) {
	out, err := io.ReadAll(p.primary)
	if err != nil {
		return out, fmt.Errorf("read output: %w", err)
	}

	return out, nil
}

// Stderr returns the captured diagnostic text. It is empty in download mode
// and complete only after Wait returns.
func (p *Process) Stderr() string {
	if p.stderr == nil {
		return ""
	}

	return strings.TrimSpace(p.stderr.String())
}

// Wait drains any unread output and blocks until the process exits.
// A non-zero exit is reported through the code, not the error.
func (p *Process) Wait() (int, error) {
	// the pipe must be drained before cmd.Wait closes it
	_, _ = io.Copy(io.Discard, p.primary)

	err := p.cmd.Wait()
	p.stop()

	if err == nil {
		if p.scanErr != nil {
			return 0, fmt.Errorf("scan output: %w", p.scanErr)
		}

		return 0, nil
	}

	if ctxErr := p.ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("wait: %w", err)
}
