package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ccranking/internal/browser"
	"ccranking/internal/components/chrono"
	"ccranking/internal/components/telemetry"
	"ccranking/internal/config"
	"ccranking/internal/history"
	historydb "ccranking/internal/history/db"
	"ccranking/internal/htmlpage"
	"ccranking/internal/pipeline"
	"ccranking/internal/sink"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newBrowser(cfg config.Config, tel telemetry.API) (pipeline.Browser, error) {
	switch cfg.Backend {
	case config.BackendStatic:
		return htmlpage.NewBrowser(htmlpage.Options{
			Selectors:         cfg.RankingSelectors(),
			RequestsPerSecond: cfg.Static.RequestsPerSecond,
			UserAgent:         cfg.Browser.UserAgent,
		}, tel)
	default:
		return browser.NewBrowser(browser.Options{
			Selectors:       cfg.RankingSelectors(),
			RemoteURL:       cfg.Browser.RemoteURL,
			Headless:        cfg.Headless(),
			UserAgent:       cfg.Browser.UserAgent,
			ScrollIncrement: cfg.ScrollIncrement,
		}, tel), nil
	}
}

// newSinks returns the sinks enabled in cfg and a function that releases them.
func newSinks(ctx context.Context, cfg config.Config, tel telemetry.API) ([]sink.Sink, func(), error) {
	var sinks []sink.Sink
	cleanup := func() {}

	if cfg.HasOutput(config.OutputCSV) {
		sinks = append(sinks, sink.NewCSV(cfg.OutputFolder, cfg.FilePrefix))
	}
	if cfg.HasOutput(config.OutputXLSX) {
		sinks = append(sinks, sink.NewXLSX(cfg.OutputFolder, cfg.FilePrefix))
	}
	if cfg.History.Enabled() {
		database, err := historydb.Open(ctx, historydb.Config{
			File:      cfg.History.File,
			URL:       cfg.History.Url,
			AuthToken: cfg.History.AuthToken,
		})
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { database.Close() }
		sinks = append(sinks, history.NewStore(database, tel))
	}
	if cfg.Email.Enabled() {
		sinks = append(sinks, sink.NewEmail(sink.SmtpConfig{
			Server:       cfg.Email.Server,
			Port:         cfg.Email.Port,
			EmailAddress: cfg.Email.EmailAddress,
			Password:     cfg.Email.Password,
		}, cfg.Email.To, cfg.FilePrefix))
	}
	return sinks, cleanup, nil
}

func runScrape(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "ccranking")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer t.Shutdown(context.Background())

	tel := telemetry.SlogAPI{}

	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	pageBrowser, err := newBrowser(cfg, tel)
	if err != nil {
		return fmt.Errorf("create browser: %w", err)
	}
	sinks, cleanup, err := newSinks(ctx, cfg, tel)
	if err != nil {
		return fmt.Errorf("create sinks: %w", err)
	}
	defer cleanup()

	slog.Info("scraping rankings", "url", cfg.Url, "backend", cfg.Backend, "target", cfg.TargetCount)
	start := time.Now()
	report, err := pipeline.NewPipeline(pageBrowser, sinks, clock, tel).Run(ctx, cfg.PipelineOptions())
	telemetry.RecordPerfStats(context.Background(), tel)

	if showCount > 0 {
		printRecords(report, showCount)
	}
	printReport(report, time.Since(start))
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	if report.Outcome == pipeline.OutcomeNoData {
		slog.Warn("no rows could be decoded, nothing was written")
	}
	return nil
}

func printReport(report pipeline.Report, elapsed time.Duration) {
	t := newTable()
	t.SetTitle("Run %s", report.RunID)
	t.AppendRows([]table.Row{
		{"Time", report.Time.Format(time.DateTime)},
		{"Revealed", fmt.Sprintf("%d (%s after %d attempts)", report.Reveal.FinalCount, report.Reveal.State, report.Reveal.AttemptsUsed)},
		{"Decoded", report.Decoded},
		{"Skipped", report.Skipped},
		{"Outcome", report.Outcome},
		{"Elapsed", elapsed.Round(time.Millisecond)},
	})
	for _, output := range report.Outputs {
		t.AppendRow(table.Row{output.Sink, output.Location})
	}
	t.Render()
}

func printRecords(report pipeline.Report, n int) {
	batch := report.Batch
	if batch.Empty() {
		return
	}
	rows := batch.Rows()
	t := newTable()
	t.AppendHeader(toRow(rows[0]))
	for _, row := range rows[1:min(n+1, len(rows))] {
		t.AppendRow(toRow(row))
	}
	t.Render()
}
