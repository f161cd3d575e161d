package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWeatherFetch           = errors.New("weather fetch failed")
	ErrGenerationTimeout      = errors.New("generation timed out")
	ErrGenerationWorkerFailed = errors.New("generation worker failed")
	ErrArtifactNotProduced    = errors.New("worker reported success but produced no artifact")
	ErrFallbackFailed         = errors.New("all generation strategies failed")
	ErrPersistence            = errors.New("artifact persistence failed")
	ErrApply                  = errors.New("wallpaper apply failed")
	ErrNotFound               = errors.New("artifact not found")
	ErrRunNotFound            = errors.New("run not found")
	ErrPipelineBusy           = errors.New("a pipeline run is already in progress")
	ErrUnknownTheme           = errors.New("unknown theme")
	ErrNoRenderers            = errors.New("no render strategies configured")
	ErrInvalidSettings        = errors.New("invalid settings")
)

// WorkerError carries the diagnostic output of a failed render worker.
// Err is one of ErrGenerationTimeout, ErrGenerationWorkerFailed or
// ErrArtifactNotProduced, possibly wrapping the process error.
type WorkerError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *WorkerError) Error() string {
	msg := e.Err.Error()
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *WorkerError) Unwrap() error { return e.Err }

// StrategyFailure records why one render strategy failed.
type StrategyFailure struct {
	Strategy string
	Err      error
}

// GenerationError is returned when every strategy failed. It matches
// ErrFallbackFailed and also every strategy cause, so callers can still
// tell a primary timeout from a worker failure.
type GenerationError struct {
	Failures []StrategyFailure
}

func (e *GenerationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Strategy, f.Err))
	}
	return fmt.Sprintf("%s: %s", ErrFallbackFailed, strings.Join(parts, "; "))
}

func (e *GenerationError) Unwrap() []error {
	errs := []error{ErrFallbackFailed}
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Primary returns the error of the first strategy tried.
func (e *GenerationError) Primary() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Err
}

// Last returns the error of the final strategy tried.
func (e *GenerationError) Last() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}

// ApplyError reports the display on which applying a wallpaper failed.
type ApplyError struct {
	Display DisplayID
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s on display %s: %v", ErrApply, e.Display, e.Err)
}

func (e *ApplyError) Unwrap() []error { return []error{ErrApply, e.Err} }
