package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// SettingsProvider supplies the current user settings.
type SettingsProvider interface {
	GetConfig() *domain.AppConfig
}

// RunObserver receives the outcome of every pipeline run.
type RunObserver interface {
	ObserveRun(trigger domain.RunTrigger, status domain.RunStatus, d time.Duration)
}

// PipelineDeps groups the collaborators of a Pipeline.
type PipelineDeps struct {
	Weather      *WeatherCache
	Orchestrator *GenerationOrchestrator
	Store        *ArtifactStore
	Journal      *RunJournal
	Settings     SettingsProvider
	Observer     RunObserver // optional
}

// Pipeline runs weather → prompt → generate → persist → apply → retention.
// Only one run executes at a time.
type Pipeline struct {
	logger   *slog.Logger
	deps     PipelineDeps
	location domain.Coordinates
	workDir  string
	now      Clock
	sem      *semaphore.Weighted
}

// NewPipeline creates a pipeline for a fixed location. workDir holds
// transient renders before the store copies them in.
func NewPipeline(logger *slog.Logger, deps PipelineDeps, location domain.Coordinates, workDir string, now Clock) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		logger:   logger,
		deps:     deps,
		location: location,
		workDir:  workDir,
		now:      now,
		sem:      semaphore.NewWeighted(1),
	}
}

// Preview holds what a run would send to the renderer.
type Preview struct {
	Weather   domain.WeatherSnapshot `json:"weather"`
	Category  domain.WeatherCategory `json:"category"`
	TimeOfDay domain.TimeOfDay       `json:"time_of_day"`
	Theme     domain.Theme           `json:"theme"`
	Prompt    string                 `json:"prompt"`
	Stale     bool                   `json:"stale"`
}

// Preview fetches the weather and composes the prompt without rendering.
func (p *Pipeline) Preview(ctx context.Context, theme domain.Theme) (Preview, error) {
	if theme == "" {
		theme = p.deps.Settings.GetConfig().Theme
	}
	snap, stale, err := p.weather(ctx)
	if err != nil {
		return Preview{}, err
	}
	tod := domain.TimeOfDayAt(p.now())
	return Preview{
		Weather:   snap,
		Category:  snap.Category(),
		TimeOfDay: tod,
		Theme:     theme,
		Prompt:    ComposePrompt(snap, theme, tod),
		Stale:     stale,
	}, nil
}

// Run executes one full pipeline pass. It fails fast with
// domain.ErrPipelineBusy when another run is in progress. When the apply
// step fails the persisted artifact is still returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, trigger domain.RunTrigger) (domain.Artifact, domain.RunID, error) {
	if !p.sem.TryAcquire(1) {
		return domain.Artifact{}, "", domain.ErrPipelineBusy
	}
	defer p.sem.Release(1)

	cfg := p.deps.Settings.GetConfig()
	theme := cfg.Theme
	if !theme.Valid() {
		theme = domain.DefaultTheme
	}

	j := p.deps.Journal
	runID := j.StartRun(trigger, theme)
	started := p.now()
	log := p.logger.With("run_id", string(runID), "trigger", trigger)
	log.Info("pipeline run started", "theme", theme)

	art, status, err := p.run(ctx, runID, cfg, theme, log)

	j.EndRun(runID, status, err)
	if p.deps.Observer != nil {
		p.deps.Observer.ObserveRun(trigger, status, p.now().Sub(started))
	}
	if err != nil {
		log.Error("pipeline run failed", "status", status, "error", err)
	} else {
		log.Info("pipeline run completed", "artifact_id", art.ID)
	}
	return art, runID, err
}

func (p *Pipeline) run(ctx context.Context, runID domain.RunID, cfg *domain.AppConfig, theme domain.Theme, log *slog.Logger) (domain.Artifact, domain.RunStatus, error) {
	j := p.deps.Journal

	// Weather
	j.StartStage(runID, domain.StageWeather)
	snap, stale, err := p.weather(ctx)
	if err != nil {
		j.EndStage(runID, domain.StageWeather, statusFor(err), err, nil)
		return domain.Artifact{}, statusFor(err), err
	}
	weatherStatus := domain.RunStatusOK
	if stale {
		weatherStatus = domain.RunStatusStale
		log.Warn("using last known weather snapshot", "captured_at", snap.CapturedAt)
	}
	j.EndStage(runID, domain.StageWeather, weatherStatus, nil, map[string]string{
		"category": string(snap.Category()),
		"code":     fmt.Sprint(snap.WeatherCode),
	})

	// Prompt
	j.StartStage(runID, domain.StagePrompt)
	tod := domain.TimeOfDayAt(p.now())
	prompt := ComposePrompt(snap, theme, tod)
	j.Annotate(runID, func(r *domain.Run) { r.Prompt = prompt })
	j.EndStage(runID, domain.StagePrompt, domain.RunStatusOK, nil, map[string]string{"time_of_day": string(tod)})

	// Generate
	j.StartStage(runID, domain.StageGenerate)
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		err = fmt.Errorf("failed to create render dir: %w", err)
		j.EndStage(runID, domain.StageGenerate, domain.RunStatusError, err, nil)
		return domain.Artifact{}, domain.RunStatusError, err
	}
	dest := filepath.Join(p.workDir, fmt.Sprintf("render_%s.png", runID))
	defer os.Remove(dest)

	rendered, strategy, err := p.deps.Orchestrator.Generate(ctx, prompt, dest)
	if err != nil {
		var attrs map[string]string
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			attrs = make(map[string]string, len(genErr.Failures))
			for _, f := range genErr.Failures {
				attrs[f.Strategy] = truncate(f.Err.Error(), 500)
			}
		}
		j.EndStage(runID, domain.StageGenerate, statusFor(err), err, attrs)
		return domain.Artifact{}, statusFor(err), err
	}
	if rendered != dest {
		defer os.Remove(rendered)
	}
	j.Annotate(runID, func(r *domain.Run) { r.Strategy = strategy })
	j.EndStage(runID, domain.StageGenerate, domain.RunStatusOK, nil, map[string]string{"strategy": strategy})

	// Persist
	j.StartStage(runID, domain.StagePersist)
	art, err := p.deps.Store.Persist(ctx, rendered, snap, theme)
	if err != nil {
		j.EndStage(runID, domain.StagePersist, statusFor(err), err, nil)
		return domain.Artifact{}, statusFor(err), err
	}
	j.Annotate(runID, func(r *domain.Run) { r.ArtifactID = art.ID })
	j.EndStage(runID, domain.StagePersist, domain.RunStatusOK, nil, map[string]string{"path": art.ImagePath})

	// Apply
	j.StartStage(runID, domain.StageApply)
	applyErr := p.deps.Store.SetCurrent(ctx, art.ID)
	if applyErr != nil {
		j.EndStage(runID, domain.StageApply, statusFor(applyErr), applyErr, nil)
	} else {
		j.EndStage(runID, domain.StageApply, domain.RunStatusOK, nil, nil)
	}

	// Retention runs even when apply failed so the cap still holds.
	j.StartStage(runID, domain.StageRetention)
	removed, err := p.deps.Store.EnforceRetention(context.WithoutCancel(ctx), cfg.RetentionCap)
	if err != nil {
		log.Warn("retention failed", "error", err)
		j.EndStage(runID, domain.StageRetention, domain.RunStatusError, err, nil)
	} else {
		j.EndStage(runID, domain.StageRetention, domain.RunStatusOK, nil, map[string]string{"removed": fmt.Sprint(len(removed))})
	}

	if applyErr != nil {
		return art, statusFor(applyErr), applyErr
	}
	return art, domain.RunStatusOK, nil
}

// weather applies the stale-reuse policy: a failed refresh falls back to
// the last good snapshot when there is one.
func (p *Pipeline) weather(ctx context.Context) (domain.WeatherSnapshot, bool, error) {
	snap, err := p.deps.Weather.FetchWeather(ctx, p.location)
	if err == nil {
		return snap, false, nil
	}
	if ctx.Err() != nil {
		return domain.WeatherSnapshot{}, false, err
	}
	if last, ok := p.deps.Weather.LastKnown(); ok {
		return last, true, nil
	}
	return domain.WeatherSnapshot{}, false, err
}

func statusFor(err error) domain.RunStatus {
	if errors.Is(err, context.Canceled) {
		return domain.RunStatusCancelled
	}
	return domain.RunStatusError
}
