package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/adityak74/weatherweave/internal/adapters/desktop"
	"github.com/adityak74/weatherweave/internal/adapters/duckdb"
	"github.com/adityak74/weatherweave/internal/adapters/openmeteo"
	"github.com/adityak74/weatherweave/internal/adapters/providers"
	"github.com/adityak74/weatherweave/internal/config"
	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/adityak74/weatherweave/internal/core/services"
	"github.com/adityak74/weatherweave/internal/metrics"
)

// App is the wired object graph shared by every command.
type App struct {
	Logger       *slog.Logger
	Options      *config.Options
	Repo         *duckdb.Repository
	Settings     *config.SettingsStore
	EventBus     *services.EventBus
	Store        *services.ArtifactStore
	Journal      *services.RunJournal
	Weather      *services.WeatherCache
	Orchestrator *services.GenerationOrchestrator
	Pipeline     *services.Pipeline
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
}

// NewLogger builds the slog handler selected by level and format.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "text" {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

// Bootstrap opens storage and wires the pipeline. Commands that never
// touch the weather service may run without a configured location.
func Bootstrap(ctx context.Context, logger *slog.Logger, opts *config.Options) (*App, error) {
	repo, err := duckdb.NewRepository(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app, err := wire(ctx, logger, opts, repo)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return app, nil
}

func wire(ctx context.Context, logger *slog.Logger, opts *config.Options, repo *duckdb.Repository) (*App, error) {
	secret, err := config.NewSecretKey(opts.SecretKey, opts.SecretKeyFile())
	if err != nil {
		return nil, err
	}
	settings, err := config.NewSettingsStore(ctx, logger, repo, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	cfg := settings.GetConfig()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	applier, err := desktop.New(logger, opts.ApplyCommand, opts.Displays)
	if err != nil {
		return nil, fmt.Errorf("failed to build desktop applier: %w", err)
	}

	bus := services.NewEventBus(logger)

	store, err := services.NewArtifactStore(logger, opts.StorageDir(), applier, nil)
	if err != nil {
		return nil, err
	}
	store.OnChange(func(size int) {
		m.SetHistorySize(size)
		bus.HistoryChanged(size)
	})
	m.SetHistorySize(len(store.History()))

	weather := services.NewWeatherCache(logger, openmeteo.NewClient(opts.WeatherURL, nil), cfg.CacheInterval.Duration(), nil)
	weather.OnFetch(m.ObserveWeatherFetch)

	renderers, err := providers.BuildRenderers(opts, cfg)
	if err != nil {
		return nil, err
	}
	orch := services.NewGenerationOrchestrator(logger, renderers...)
	orch.Observe(m.ObserveAttempt)

	journal := services.NewRunJournal(logger, bus, repo)

	var location domain.Coordinates
	if opts.Location != nil {
		location = *opts.Location
	}

	pipeline := services.NewPipeline(logger, services.PipelineDeps{
		Weather:      weather,
		Orchestrator: orch,
		Store:        store,
		Journal:      journal,
		Settings:     settings,
		Observer:     m,
	}, location, opts.WorkDir(), nil)

	// Settings edits rebuild the strategies and the cache lifetime.
	settings.OnChange(func(next *domain.AppConfig) {
		weather.SetInterval(next.CacheInterval.Duration())
		rs, err := providers.BuildRenderers(opts, next)
		if err != nil {
			logger.Error("failed to rebuild renderers, keeping previous set", "error", err)
			return
		}
		orch.UpdateRenderers(rs...)
	})

	return &App{
		Logger:       logger,
		Options:      opts,
		Repo:         repo,
		Settings:     settings,
		EventBus:     bus,
		Store:        store,
		Journal:      journal,
		Weather:      weather,
		Orchestrator: orch,
		Pipeline:     pipeline,
		Metrics:      m,
		Registry:     registry,
	}, nil
}

// Close flushes pending journal writes and closes the database.
func (a *App) Close() error {
	a.Journal.Flush()
	return a.Repo.Close()
}
