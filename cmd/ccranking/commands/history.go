package commands

import (
	"errors"
	"fmt"

	"ccranking/internal/components/telemetry"
	"ccranking/internal/config"
	"ccranking/internal/history"
	historydb "ccranking/internal/history/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyPlayer string
	historyLimit  int
)

func init() {
	historyCmd.Flags().StringVar(&historyPlayer, "player", "", "Look a player up in the latest run.")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "How many runs to list.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--player <name>] [--limit <n>]",
	Short: "Lists recorded runs or looks a player up in the latest one.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !cfg.History.Enabled() {
			return errors.New("history is not configured, set history.file or history.url")
		}

		database, err := historydb.Open(cmd.Context(), historydb.Config{
			File:      cfg.History.File,
			URL:       cfg.History.Url,
			AuthToken: cfg.History.AuthToken,
		})
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer database.Close()
		store := history.NewStore(database, telemetry.SlogAPI{})

		if historyPlayer == "" {
			runs, err := store.Runs(cmd.Context(), historyLimit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			t := newTable()
			t.AppendHeader(table.Row{"Date", "Run", "Layout", "Records"})
			for _, r := range runs {
				t.AppendRow(table.Row{r.Date, r.ID, r.Layout, r.RecordCount})
			}
			t.Render()
			return nil
		}

		run, matches, err := store.FindPlayer(cmd.Context(), historyPlayer)
		if err != nil {
			return fmt.Errorf("look up player: %w", err)
		}
		if len(matches) == 0 {
			fmt.Printf("no player similar to '%s' in the run of %s\n", historyPlayer, run.Date)
			return nil
		}

		t := newTable()
		t.SetTitle("Run of %s", run.Date)
		header := append(toRow(run.Layout.Header()), "Similarity")
		t.AppendHeader(header)
		for _, m := range matches {
			row := append(toRow(m.Record.Values(run.Layout)), fmt.Sprintf("%.2f", m.Similarity))
			t.AppendRow(row)
		}
		t.Render()
		return nil
	},
}
