package desktop

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

const defaultApplyTimeout = 30 * time.Second

// CommandApplier paints wallpapers by running a command template such as
// `feh --bg-fill {path}` or `set-wallpaper --screen {display} {path}`.
// The template is split on whitespace before substitution, so paths with
// spaces stay one argument and no shell is involved.
type CommandApplier struct {
	logger   *slog.Logger
	argv     []string
	displays []domain.DisplayID
	timeout  time.Duration
}

func NewCommandApplier(logger *slog.Logger, template string, displays []domain.DisplayID) (*CommandApplier, error) {
	argv := strings.Fields(template)
	if len(argv) == 0 {
		return nil, fmt.Errorf("apply command is empty")
	}
	if !strings.Contains(template, "{path}") {
		return nil, fmt.Errorf("apply command must reference {path}")
	}
	if len(displays) == 0 {
		displays = []domain.DisplayID{"main"}
	}
	return &CommandApplier{
		logger:   logger,
		argv:     argv,
		displays: displays,
		timeout:  defaultApplyTimeout,
	}, nil
}

func (a *CommandApplier) Displays(ctx context.Context) ([]domain.DisplayID, error) {
	return append([]domain.DisplayID(nil), a.displays...), nil
}

func (a *CommandApplier) Apply(ctx context.Context, imagePath string, display domain.DisplayID) error {
	replacer := strings.NewReplacer("{path}", imagePath, "{display}", string(display))
	args := make([]string, len(a.argv))
	for i, arg := range a.argv {
		args[i] = replacer.Replace(arg)
	}

	execCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, args[0], args[1:]...)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("apply command timed out after %s", a.timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("apply command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("apply command failed: %w", err)
	}

	a.logger.Debug("wallpaper applied", "display", display, "path", imagePath)
	return nil
}

// LogApplier is used when no apply command is configured. It only records
// what would have been painted.
type LogApplier struct {
	logger   *slog.Logger
	displays []domain.DisplayID
}

func NewLogApplier(logger *slog.Logger, displays []domain.DisplayID) *LogApplier {
	if len(displays) == 0 {
		displays = []domain.DisplayID{"main"}
	}
	return &LogApplier{logger: logger, displays: displays}
}

func (a *LogApplier) Displays(ctx context.Context) ([]domain.DisplayID, error) {
	return append([]domain.DisplayID(nil), a.displays...), nil
}

func (a *LogApplier) Apply(ctx context.Context, imagePath string, display domain.DisplayID) error {
	a.logger.Info("wallpaper ready (no apply command configured)", "display", display, "path", imagePath)
	return nil
}

// New picks the applier for the configured command.
func New(logger *slog.Logger, template string, displays []domain.DisplayID) (domain.DesktopApplier, error) {
	if strings.TrimSpace(template) == "" {
		return NewLogApplier(logger, displays), nil
	}
	return NewCommandApplier(logger, template, displays)
}
