package ports

import (
	"context"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// RunRepository persists completed pipeline runs.
type RunRepository interface {
	SaveRun(ctx context.Context, run *domain.Run) error

	// ListRuns returns summaries, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// GetRun returns a run with its stages, or domain.ErrRunNotFound.
	GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error)
}

// SettingsRepository stores opaque settings blobs by key.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key string, value string) error
}

// Repository abstracts the persistent storage (DuckDB).
type Repository interface {
	RunRepository
	SettingsRepository

	// PruneRuns keeps the newest keep runs and reports how many were dropped.
	PruneRuns(ctx context.Context, keep int) (int, error)

	Close() error
}
