package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// NewGenerateCmd creates the 'generate' command.
func NewGenerateCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and apply a wallpaper for the current weather",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.bootstrap(cmd, true)
			if err != nil {
				return err
			}
			defer closeApp(app)

			art, runID, err := app.Pipeline.Run(commandContext(cmd), domain.TriggerManual)
			if err != nil && art.ID == "" {
				return fmt.Errorf("run %s: %w", runID, err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if encErr := writeIndented(out, map[string]interface{}{"run_id": runID, "artifact": art}); encErr != nil {
					return encErr
				}
			} else {
				fmt.Fprintf(out, "Generated %s (%s)\n", art.ID, art.DisplayName())
				fmt.Fprintf(out, "  Image: %s\n", art.ImagePath)
				fmt.Fprintf(out, "  Run:   %s\n", runID)
			}
			// Apply failures leave the artifact persisted but still fail the command.
			return err
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// NewWeatherCmd creates the 'weather' command.
func NewWeatherCmd(g *globals) *cobra.Command {
	var theme string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Show the current weather and the prompt it would produce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var th domain.Theme
			if theme != "" {
				t, err := domain.ParseTheme(theme)
				if err != nil {
					return err
				}
				th = t
			}

			app, err := g.bootstrap(cmd, true)
			if err != nil {
				return err
			}
			defer closeApp(app)

			p, err := app.Pipeline.Preview(commandContext(cmd), th)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeIndented(out, p)
			}
			fmt.Fprintf(out, "Conditions: %s (code %d)\n", p.Category, p.Weather.WeatherCode)
			fmt.Fprintf(out, "Temperature: %.1f°F, precipitation %.1f mm, cloud cover %d%%\n",
				p.Weather.Temperature, p.Weather.Precipitation, p.Weather.CloudCover)
			fmt.Fprintf(out, "Time of day: %s\n", p.TimeOfDay)
			if p.Stale {
				fmt.Fprintln(out, "Note: weather service unreachable, showing last known conditions")
			}
			fmt.Fprintf(out, "Theme: %s\n\nPrompt:\n  %s\n", p.Theme.DisplayName(), p.Prompt)
			return nil
		},
	}

	cmd.Flags().StringVarP(&theme, "theme", "t", "", "Theme to preview instead of the saved one")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// NewHistoryCmd creates the 'history' command.
func NewHistoryCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List generated wallpapers, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.bootstrap(cmd, false)
			if err != nil {
				return err
			}
			defer closeApp(app)

			arts, current := app.Store.Snapshot()
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeIndented(out, map[string]interface{}{"current": current, "artifacts": arts})
			}
			if len(arts) == 0 {
				fmt.Fprintln(out, "No wallpapers yet. Run 'weatherweave generate' to create one.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tTHEME\tWEATHER\tCREATED")
			for _, a := range arts {
				marker := ""
				if a.ID == current {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, a.ID, a.Theme, a.Weather.Category(), a.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// NewApplyCmd creates the 'apply' command.
func NewApplyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <id>",
		Short: "Set a wallpaper from history as the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.bootstrap(cmd, false)
			if err != nil {
				return err
			}
			defer closeApp(app)

			id := domain.ArtifactID(args[0])
			if err := app.Store.SetCurrent(commandContext(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", id)
			return nil
		},
	}
}

// NewDeleteCmd creates the 'delete' command.
func NewDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a wallpaper from history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.bootstrap(cmd, false)
			if err != nil {
				return err
			}
			defer closeApp(app)

			id := domain.ArtifactID(args[0])
			if err := app.Store.Delete(commandContext(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}
}

// NewPruneCmd creates the 'prune' command.
func NewPruneCmd(g *globals) *cobra.Command {
	var keep, keepRuns int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop old wallpapers and run records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.bootstrap(cmd, false)
			if err != nil {
				return err
			}
			defer closeApp(app)

			ctx := commandContext(cmd)
			if !cmd.Flags().Changed("keep") {
				keep = app.Settings.GetConfig().RetentionCap
			}
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}

			removed, err := app.Store.EnforceRetention(ctx, keep)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d wallpaper(s), %d kept\n", len(removed), len(app.Store.History()))

			if keepRuns > 0 {
				n, err := app.Repo.PruneRuns(ctx, keepRuns)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d run record(s)\n", n)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Wallpapers to keep (defaults to the retention cap)")
	cmd.Flags().IntVar(&keepRuns, "runs", 0, "Also keep only the newest N run records")
	return cmd
}

// NewThemesCmd creates the 'themes' command.
func NewThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the available themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, t := range domain.AllThemes {
				def := ""
				if t == domain.DefaultTheme {
					def = " (default)"
				}
				fmt.Fprintf(tw, "%s\t%s%s\t%s\n", t, t.DisplayName(), def, t.Description())
			}
			return tw.Flush()
		},
	}
}

func writeIndented(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
