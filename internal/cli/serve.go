package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/adityak74/weatherweave/internal/core/services"
	"github.com/adityak74/weatherweave/pkg/kernel"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the 'serve' command.
func NewServeCmd(g *globals, version string) *cobra.Command {
	var origins []string
	var generateOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auto updater and the local control API",
		Long: `Serve keeps the wallpaper in sync with the weather on the configured
interval and exposes the control API on WEATHERWEAVE_LISTEN_ADDR.

Send SIGUSR1 after the machine wakes from sleep to regenerate immediately
when update-on-wake is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.bootstrap(cmd, true)
			if err != nil {
				return err
			}
			defer closeApp(app)
			return runServe(commandContext(cmd), app, version, origins, generateOnStart)
		},
	}

	cmd.Flags().StringSliceVar(&origins, "cors-origin", []string{"http://localhost:5173"}, "Allowed CORS origins for the control API")
	cmd.Flags().BoolVar(&generateOnStart, "generate-on-start", false, "Run the pipeline once at startup")
	return cmd
}

func runServe(parent context.Context, app *App, version string, origins []string, generateOnStart bool) error {
	logger := app.Logger
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	updater := services.NewAutoUpdater(logger, app.Pipeline)
	app.Settings.OnChange(func(cfg *domain.AppConfig) {
		if err := updater.Apply(cfg); err != nil {
			logger.Error("failed to reschedule auto update", "error", err)
		}
	})

	apiServer := kernel.NewServer(kernel.Deps{
		Logger:       logger,
		Pipeline:     app.Pipeline,
		Orchestrator: app.Orchestrator,
		Store:        app.Store,
		Journal:      app.Journal,
		Settings:     app.Settings,
		EventBus:     app.EventBus,
		Metrics:      app.Metrics,
		Gatherer:     app.Registry,
		Version:      version,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:              app.Options.ListenAddr,
		Handler:           c.Handler(apiServer.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return updater.Run(gCtx, app.Settings.GetConfig())
	})

	g.Go(func() error {
		logger.Info("starting control api", "addr", httpServer.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down control api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		watchWake(gCtx, updater, logger)
		return nil
	})

	if generateOnStart {
		g.Go(func() error {
			if _, _, err := app.Pipeline.Run(gCtx, domain.TriggerManual); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("startup generation failed", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}
