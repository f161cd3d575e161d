package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

const (
	// DefaultWorkerTimeout bounds one worker process, measured from start.
	DefaultWorkerTimeout = 60 * time.Second

	maxStderr = 4096
	waitDelay = 2 * time.Second
)

// WorkerRenderer runs a local generator process as
// `<command> [args...] <prompt> <dest>` and expects it to write dest.
type WorkerRenderer struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
}

// NewWorkerRenderer builds the primary strategy. argv[0] is the executable.
func NewWorkerRenderer(argv []string, dir string, timeout time.Duration) (*WorkerRenderer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("worker command is required")
	}
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	return &WorkerRenderer{
		command: argv[0],
		args:    append([]string(nil), argv[1:]...),
		dir:     dir,
		timeout: timeout,
	}, nil
}

func (w *WorkerRenderer) Name() string { return "worker" }

func (w *WorkerRenderer) Timeout() time.Duration { return w.timeout }

func (w *WorkerRenderer) Render(ctx context.Context, prompt, dest string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	args := append(append([]string(nil), w.args...), prompt, dest)
	cmd := exec.CommandContext(execCtx, w.command, args...)
	cmd.Dir = w.dir
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("worker cancelled: %w", ctx.Err())
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return "", &domain.WorkerError{
				Stderr: tail(stderr.String()),
				Err:    fmt.Errorf("%w after %s", domain.ErrGenerationTimeout, w.timeout),
			}
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &domain.WorkerError{
			ExitCode: exitCode,
			Stderr:   tail(stderr.String()),
			Err:      fmt.Errorf("%w: %w", domain.ErrGenerationWorkerFailed, err),
		}
	}

	info, err := os.Stat(dest)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", &domain.WorkerError{
			Stderr: tail(stderr.String()),
			Err:    domain.ErrArtifactNotProduced,
		}
	}
	return dest, nil
}

// tail keeps the end of the worker's stderr, where tracebacks end up.
func tail(s string) string {
	if len(s) <= maxStderr {
		return s
	}
	i := len(s) - maxStderr
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return "..." + s[i:]
}
