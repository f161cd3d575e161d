package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSettings struct{ cfg *domain.AppConfig }

func (s staticSettings) GetConfig() *domain.AppConfig {
	cp := *s.cfg
	return &cp
}

// fileRenderer writes a tiny PNG-ish payload to dest.
type fileRenderer struct {
	name    string
	gate    chan struct{}
	err     error
	prompts []string
}

func (f *fileRenderer) Name() string { return f.name }

func (f *fileRenderer) Render(ctx context.Context, prompt, dest string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return dest, os.WriteFile(dest, []byte("\x89PNG"), 0o644)
}

type countingObserver struct {
	statuses []domain.RunStatus
}

func (c *countingObserver) ObserveRun(_ domain.RunTrigger, status domain.RunStatus, _ time.Duration) {
	c.statuses = append(c.statuses, status)
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *ArtifactStore
	journal  *RunJournal
	source   *fakeWeatherSource
	renderer *fileRenderer
	applier  *recordingApplier
	observer *countingObserver
	clock    *fakeClock
	cfg      *domain.AppConfig
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	logger := testLogger()
	clock := newFakeClock() // 10:00 UTC
	root := t.TempDir()

	f := &pipelineFixture{
		source:   &fakeWeatherSource{code: 0},
		renderer: &fileRenderer{name: "fake"},
		applier:  newRecordingApplier("main"),
		observer: &countingObserver{},
		clock:    clock,
		cfg:      domain.DefaultConfig(),
	}

	store, err := NewArtifactStore(logger, filepath.Join(root, "wallpapers"), f.applier, clock.Now)
	require.NoError(t, err)
	f.store = store
	f.journal = NewRunJournal(logger, NewEventBus(logger), nil)

	f.pipeline = NewPipeline(logger, PipelineDeps{
		Weather:      NewWeatherCache(logger, f.source, 300*time.Second, clock.Now),
		Orchestrator: NewGenerationOrchestrator(logger, f.renderer),
		Store:        store,
		Journal:      f.journal,
		Settings:     staticSettings{cfg: f.cfg},
		Observer:     f.observer,
	}, here, filepath.Join(root, "renders"), func() time.Time { return clock.Now().In(time.UTC) })
	return f
}

func TestPipeline_RunProducesCurrentArtifact(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	art, runID, err := f.pipeline.Run(ctx, domain.TriggerManual)
	require.NoError(t, err)

	cur, ok := f.store.Current()
	require.True(t, ok)
	assert.Equal(t, art.ID, cur.ID)
	assert.Equal(t, domain.ThemeNature, art.Theme)
	assert.Equal(t, art.ImagePath, f.applier.applied["main"])

	require.Len(t, f.renderer.prompts, 1)
	assert.Contains(t, f.renderer.prompts[0], "Bright sunny landscape")

	run, err := f.journal.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusOK, run.Status)
	assert.Equal(t, art.ID, run.ArtifactID)
	assert.Equal(t, "fake", run.Strategy)
	require.Len(t, run.Stages, 6)
	for _, s := range run.Stages {
		assert.Equal(t, domain.RunStatusOK, s.Status, "stage %s", s.Name)
	}

	// transient render is cleaned up
	renders, _ := filepath.Glob(filepath.Join(filepath.Dir(f.store.Dir()), "renders", "*.png"))
	assert.Empty(t, renders)
	assert.Equal(t, []domain.RunStatus{domain.RunStatusOK}, f.observer.statuses)
}

func TestPipeline_RetentionApplied(t *testing.T) {
	f := newPipelineFixture(t)
	f.cfg.RetentionCap = 2

	for i := 0; i < 4; i++ {
		_, _, err := f.pipeline.Run(context.Background(), domain.TriggerSchedule)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	assert.Len(t, f.store.History(), 2)
}

func TestPipeline_ReusesLastKnownWeather(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, _, err := f.pipeline.Run(ctx, domain.TriggerManual)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	f.source.err = errors.New("status 502")

	_, runID, err := f.pipeline.Run(ctx, domain.TriggerManual)
	require.NoError(t, err)

	run, err := f.journal.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusStale, run.Stages[0].Status)
	assert.Len(t, f.store.History(), 2)
}

func TestPipeline_WeatherUnavailableAborts(t *testing.T) {
	f := newPipelineFixture(t)
	f.source.err = errors.New("offline")

	_, _, err := f.pipeline.Run(context.Background(), domain.TriggerManual)
	assert.ErrorIs(t, err, domain.ErrWeatherFetch)
	assert.Empty(t, f.store.History())
	assert.Empty(t, f.renderer.prompts)
}

func TestPipeline_GenerationFailureLeavesHistory(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.err = &domain.WorkerError{ExitCode: 1, Err: domain.ErrGenerationWorkerFailed}

	_, runID, err := f.pipeline.Run(context.Background(), domain.TriggerManual)
	assert.ErrorIs(t, err, domain.ErrFallbackFailed)
	assert.ErrorIs(t, err, domain.ErrGenerationWorkerFailed)
	assert.Empty(t, f.store.History())

	run, err := f.journal.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestPipeline_ApplyFailureKeepsArtifact(t *testing.T) {
	f := newPipelineFixture(t)
	f.applier.failOn = "main"

	art, _, err := f.pipeline.Run(context.Background(), domain.TriggerManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrApply)
	assert.NotEmpty(t, art.ID)

	_, err = f.store.Get(art.ID)
	assert.NoError(t, err)
}

func TestPipeline_RejectsConcurrentRun(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, _, err := f.pipeline.Run(context.Background(), domain.TriggerManual)
		done <- err
	}()

	// A run shows up in the journal only after the semaphore is held.
	require.Eventually(t, func() bool {
		runs, _ := f.journal.ListRuns(context.Background(), 0)
		return len(runs) == 1
	}, time.Second, time.Millisecond)

	_, _, err := f.pipeline.Run(context.Background(), domain.TriggerAPI)
	assert.ErrorIs(t, err, domain.ErrPipelineBusy)

	close(f.renderer.gate)
	require.NoError(t, <-done)
}

func TestPipeline_CancelledRun(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.gate = make(chan struct{})
	defer close(f.renderer.gate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var runID domain.RunID
	go func() {
		var err error
		_, runID, err = f.pipeline.Run(ctx, domain.TriggerManual)
		done <- err
	}()

	require.Eventually(t, func() bool {
		runs, _ := f.journal.ListRuns(context.Background(), 0)
		return len(runs) == 1
	}, time.Second, time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	run, getErr := f.journal.GetRun(context.Background(), runID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)
}

func TestPipeline_Preview(t *testing.T) {
	f := newPipelineFixture(t)

	pv, err := f.pipeline.Preview(context.Background(), domain.ThemeCyberpunk)
	require.NoError(t, err)
	assert.Equal(t, domain.WeatherClear, pv.Category)
	assert.Equal(t, domain.TimeDay, pv.TimeOfDay)
	assert.Contains(t, pv.Prompt, domain.ThemeCyberpunk.Modifier())
	assert.False(t, pv.Stale)
}
