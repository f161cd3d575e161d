package duckdb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleRun(id string, start time.Time) *domain.Run {
	end := start.Add(1500 * time.Millisecond)
	stageEnd := start.Add(200 * time.Millisecond)
	return &domain.Run{
		ID:         domain.RunID(id),
		Trigger:    domain.TriggerSchedule,
		Status:     domain.RunStatusOK,
		Theme:      domain.ThemeNature,
		Prompt:     "Bright sunny landscape",
		ArtifactID: "art-1",
		Strategy:   "worker",
		StartTime:  start,
		EndTime:    &end,
		DurationMs: 1500,
		Stages: []domain.Stage{
			{
				Name:       domain.StageWeather,
				Status:     domain.RunStatusOK,
				Attributes: map[string]string{"category": "clear"},
				StartTime:  start,
				EndTime:    &stageEnd,
				DurationMs: 200,
			},
			{
				Name:      domain.StageGenerate,
				Status:    domain.RunStatusOK,
				StartTime: stageEnd,
			},
		},
	}
}

func TestRepository_Runs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveRun(ctx, sampleRun("run-1", start)))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerSchedule, got.Trigger)
	assert.Equal(t, domain.RunStatusOK, got.Status)
	assert.Equal(t, "Bright sunny landscape", got.Prompt)
	assert.Equal(t, domain.ArtifactID("art-1"), got.ArtifactID)
	assert.True(t, start.Equal(got.StartTime))
	require.NotNil(t, got.EndTime)

	require.Len(t, got.Stages, 2)
	assert.Equal(t, domain.StageWeather, got.Stages[0].Name)
	assert.Equal(t, "clear", got.Stages[0].Attributes["category"])
	assert.Nil(t, got.Stages[1].EndTime)

	// Saving again updates in place.
	updated := sampleRun("run-1", start)
	updated.Status = domain.RunStatusError
	updated.Error = "fallback failed"
	updated.Stages = updated.Stages[:1]
	require.NoError(t, repo.SaveRun(ctx, updated))

	got, err = repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, got.Status)
	assert.Equal(t, "fallback failed", got.Error)
	assert.Len(t, got.Stages, 1)

	_, err = repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRepository_ListAndPruneRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, repo.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.RunID("d"), runs[0].ID)
	assert.Equal(t, domain.RunID("c"), runs[1].ID)

	dropped, err := repo.PruneRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	runs, err = repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	_, err = repo.GetRun(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRepository_Settings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetSetting(ctx, "app_config")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, repo.SaveSetting(ctx, "app_config", `{"theme":"nature"}`))
	require.NoError(t, repo.SaveSetting(ctx, "app_config", `{"theme":"minimal"}`))

	v, err := repo.GetSetting(ctx, "app_config")
	require.NoError(t, err)
	assert.Equal(t, `{"theme":"minimal"}`, v)
}

func TestRepository_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.duckdb")
	ctx := context.Background()

	repo, err := NewRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.SaveSetting(ctx, "k", "v"))
	require.NoError(t, repo.Close())

	// Migrations are idempotent on an existing file.
	repo, err = NewRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	v, err := repo.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestRepository_SaveRunWithInvalidUTF8(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// A byte-level cut through a two-byte rune, as raw worker stderr can produce.
	broken := strings.Repeat("é", 1500)[:2001] + "...[truncated]"

	run := sampleRun("run-utf8", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	run.Status = domain.RunStatusError
	run.Error = broken
	run.Stages[1].Status = domain.RunStatusError
	run.Stages[1].Error = broken
	require.NoError(t, repo.SaveRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-utf8")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.Error))
	assert.True(t, strings.HasPrefix(got.Error, strings.Repeat("é", 1000)))
	assert.True(t, strings.HasSuffix(got.Error, "�...[truncated]"))
	require.Len(t, got.Stages, 2)
	assert.True(t, utf8.ValidString(got.Stages[1].Error))
}
