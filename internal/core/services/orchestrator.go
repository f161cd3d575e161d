package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// Attempt describes the outcome of one strategy during Generate.
type Attempt struct {
	Strategy string
	Duration time.Duration
	Err      error
}

// AttemptObserver is notified after each strategy is tried.
type AttemptObserver func(Attempt)

// GenerationOrchestrator tries render strategies in priority order until one
// produces an image.
type GenerationOrchestrator struct {
	logger *slog.Logger

	mu        sync.RWMutex
	renderers []domain.Renderer
	observer  AttemptObserver
}

func NewGenerationOrchestrator(logger *slog.Logger, renderers ...domain.Renderer) *GenerationOrchestrator {
	return &GenerationOrchestrator{
		logger:    logger,
		renderers: renderers,
	}
}

// UpdateRenderers swaps the strategy list, e.g. after a settings change.
func (o *GenerationOrchestrator) UpdateRenderers(renderers ...domain.Renderer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.renderers = renderers
}

// Observe registers fn to receive every attempt.
func (o *GenerationOrchestrator) Observe(fn AttemptObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer = fn
}

// Strategies returns the names of the configured strategies in order.
func (o *GenerationOrchestrator) Strategies() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.renderers))
	for _, r := range o.renderers {
		names = append(names, r.Name())
	}
	return names
}

// Generate renders prompt into dest. It returns the written path and the
// name of the strategy that produced it. When every strategy fails the
// error is a *domain.GenerationError matching domain.ErrFallbackFailed.
func (o *GenerationOrchestrator) Generate(ctx context.Context, prompt, dest string) (string, string, error) {
	o.mu.RLock()
	renderers := o.renderers
	observer := o.observer
	o.mu.RUnlock()

	if len(renderers) == 0 {
		return "", "", domain.ErrNoRenderers
	}

	var failures []domain.StrategyFailure
	for i, r := range renderers {
		// Cancellation by the caller stops the chain; a strategy timeout does not.
		if err := ctx.Err(); err != nil {
			return "", "", fmt.Errorf("generation cancelled: %w", err)
		}

		start := time.Now()
		path, err := r.Render(ctx, prompt, dest)
		attempt := Attempt{Strategy: r.Name(), Duration: time.Since(start), Err: err}
		if observer != nil {
			observer(attempt)
		}

		if err == nil {
			o.logger.Info("image generated",
				"strategy", r.Name(),
				"path", path,
				"duration_ms", attempt.Duration.Milliseconds(),
			)
			return path, r.Name(), nil
		}

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", "", fmt.Errorf("generation cancelled: %w", err)
		}

		failures = append(failures, domain.StrategyFailure{Strategy: r.Name(), Err: err})
		if i < len(renderers)-1 {
			o.logger.Warn("render strategy failed, trying next",
				"strategy", r.Name(),
				"next", renderers[i+1].Name(),
				"error", err,
			)
		}
	}

	genErr := &domain.GenerationError{Failures: failures}
	o.logger.Error("all render strategies failed",
		"primary_error", genErr.Primary(),
		"fallback_error", genErr.Last(),
	)
	return "", "", genErr
}
