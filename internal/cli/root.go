/*
Package cli implements the weatherweave commands.

Every command loads options from the environment (WEATHERWEAVE_*, with an
optional .env file), then overrides them with the global flags.
*/
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adityak74/weatherweave/internal/config"
)

// globals holds the persistent flags shared by all subcommands.
type globals struct {
	envFile   string
	dataDir   string
	latitude  string
	longitude string
	logLevel  string
	logFormat string
}

// NewRootCmd builds the command tree. version is stamped at build time.
func NewRootCmd(version string) *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "weatherweave",
		Short: "Weather-driven AI desktop wallpapers",
		Long: `weatherweave reads the current weather for your location, composes an
image prompt in the theme you pick, renders it with a local generator
(falling back to a Stable Diffusion web UI) and sets it as your desktop
wallpaper.

Run 'weatherweave serve' to keep it updating in the background and expose
the local control API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.envFile, "env-file", ".env", "Optional dotenv file to load before reading the environment")
	pf.StringVar(&g.dataDir, "data-dir", "", "Override WEATHERWEAVE_DATA_DIR")
	pf.StringVar(&g.latitude, "latitude", "", "Override WEATHERWEAVE_LATITUDE")
	pf.StringVar(&g.longitude, "longitude", "", "Override WEATHERWEAVE_LONGITUDE")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: json or text")

	root.AddCommand(
		NewServeCmd(g, version),
		NewGenerateCmd(g),
		NewWeatherCmd(g),
		NewHistoryCmd(g),
		NewApplyCmd(g),
		NewDeleteCmd(g),
		NewPruneCmd(g),
		NewThemesCmd(),
		NewVersionCmd(version),
	)
	return root
}

// options resolves the environment plus flag overrides.
func (g *globals) options() (*config.Options, error) {
	opts, err := config.LoadOptions(g.envFile)
	if err != nil {
		return nil, err
	}

	if g.dataDir != "" {
		opts.DataDir = g.dataDir
		opts.DBPath = config.DefaultDBPath(g.dataDir)
	}
	if g.latitude != "" || g.longitude != "" {
		if err := opts.SetLocation(g.latitude, g.longitude); err != nil {
			return nil, err
		}
	}
	if g.logLevel != "" {
		opts.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		opts.LogFormat = g.logFormat
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// bootstrap loads options, builds the logger and wires the app. When
// needLocation is set a missing location fails before anything is opened.
func (g *globals) bootstrap(cmd *cobra.Command, needLocation bool) (*App, error) {
	opts, err := g.options()
	if err != nil {
		return nil, err
	}
	if needLocation {
		if _, err := opts.RequireLocation(); err != nil {
			return nil, err
		}
	}

	logger := NewLogger(cmd.ErrOrStderr(), opts.LogLevel, opts.LogFormat)
	app, err := Bootstrap(commandContext(cmd), logger, opts)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func closeApp(app *App) {
	if err := app.Close(); err != nil {
		app.Logger.Warn("failed to close app", "error", err)
	}
}

// NewVersionCmd creates the 'version' command.
func NewVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "weatherweave %s\n", version)
			return err
		},
	}
}
