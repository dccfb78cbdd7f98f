package commands

import (
	"context"
	"os"

	"ccranking/internal/components/telemetry"
	"ccranking/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	showCount  int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ccranking.json5", "Path to the config file, a sibling ccranking.local.json5 overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logs.")
	rootCmd.Flags().IntVar(&showCount, "show", 0, "Print the first N scraped records.")
}

var rootCmd = &cobra.Command{
	Use:   "ccranking [--config <path>] [--show <n>]",
	Short: "ccranking scrapes the crystalline conflict ranking into dated tables.",
	Args:  cobra.NoArgs,
	// errors are logged once by ExecuteContext
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd.Context())
	},
}

// ExecuteContext runs the command and exits with status 1 on error, commands return
// their errors so that their deferred cleanup has run by then.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("command failed", err)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
