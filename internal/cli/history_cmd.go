// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/gpureset/internal/config"
	"github.com/jeranaias/gpureset/internal/export"
	"github.com/jeranaias/gpureset/internal/reset"
	"github.com/jeranaias/gpureset/internal/storage"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// openHistoryForRead opens the store when history is enabled or a database
// from an earlier enabled period still exists.
func openHistoryForRead(ctx context.Context, cfg *config.Config) (*storage.RunStore, error) {
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		if _, err := os.Stat(path); err != nil {
			return nil, errHistoryDisabled
		}
	}
	return storage.Open(ctx, path)
}

func (a *App) historyCommand() *cobra.Command {
	var (
		limit    int
		jsonMode bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded reset runs",
		Example: `  gpureset history
  gpureset history --limit 5 --json
  gpureset history show <run-id>
  gpureset history export <run-id> --format markdown --dir reports
  gpureset history prune --keep 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(cmd.Context(), func(store *storage.RunStore) error {
				runs, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonMode {
					if runs == nil {
						runs = []storage.RunSummary{}
					}
					return a.printJSON(runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(a.Out, "No runs recorded.")
					return nil
				}
				for _, r := range runs {
					fmt.Fprintf(a.Out, "%s  %s  %d/%d succeeded  %s\n",
						r.ID,
						r.StartedAt.Local().Format(historyTimeFormat),
						r.Succeeded, r.Succeeded+r.Failed,
						r.Duration.Round(time.Millisecond))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 = all)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")

	cmd.AddCommand(a.historyShowCommand(), a.historyExportCommand(), a.historyPruneCommand())
	return cmd
}

func (a *App) historyShowCommand() *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(cmd.Context(), func(store *storage.RunStore) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonMode {
					return a.printJSON(export.NewRunDocument(run))
				}
				fmt.Fprintf(a.Out, "Run %s  %s  (%s)\n", run.ID,
					run.StartedAt.Local().Format(historyTimeFormat), run.Duration().Round(time.Millisecond))
				for i, o := range run.Outcomes {
					line := fmt.Sprintf("%d. %s: %s", i+1, o.Strategy, o.Status)
					if o.Status == reset.StatusFailed {
						line += fmt.Sprintf(" [%s]", o.Kind)
					}
					if o.Detail != "" {
						line += " " + o.Detail
					}
					fmt.Fprintln(a.Out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}

func (a *App) historyExportCommand() *cobra.Command {
	var (
		format string
		dir    string
	)
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write one run to a Markdown or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = dir
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return err
			}
			return a.withHistory(cmd.Context(), func(store *storage.RunStore) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				path, err := export.ExportToFile(run, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "Exported to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown or json")
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	return cmd
}

func (a *App) historyPruneCommand() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(cmd.Context(), func(store *storage.RunStore) error {
				n, err := store.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.Out, "Removed %d run(s).\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 100, "number of newest runs to keep")
	return cmd
}

func (a *App) withHistory(ctx context.Context, fn func(*storage.RunStore) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	store, err := openHistoryForRead(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
