package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ccranking/internal/components/assert"
	"ccranking/internal/components/chrono"
	"ccranking/internal/components/telemetry"
	"ccranking/internal/ranking"
	"ccranking/internal/reveal"
	"ccranking/internal/sink"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ccranking/internal/pipeline")

const (
	report_browser_open      = "browser.open"
	report_page_navigate     = "page.navigate"
	report_page_consent      = "page.consent"
	report_page_content      = "page.content"
	report_page_close        = "page.close"
	report_pipeline_reveal   = "pipeline.reveal"
	report_pipeline_extract  = "pipeline.extract"
	report_pipeline_decode   = "pipeline.decode-row"
	report_pipeline_decoded  = "pipeline.decoded"
	report_pipeline_skipped  = "pipeline.skipped"
	report_sink_write        = "sink.write"
	report_pipeline_complete = "pipeline.complete"
)

var ErrContentNotFound = errors.New("ranking content not found")

// Browser acquires pages.
//
// note: fault injection point
type Browser interface {
	Open(ctx context.Context) (Page, error)
}

// Page is a single loaded ranking page. A page is released with Close, which the
// pipeline calls exactly once for every page it opened.
type Page interface {
	reveal.Target

	Navigate(ctx context.Context, url string) error
	HasConsentPrompt(ctx context.Context) (bool, error)
	DismissConsent(ctx context.Context) error
	// WaitForContent reports whether the ranking container appeared within timeout.
	WaitForContent(ctx context.Context, timeout time.Duration) (bool, error)
	Reload(ctx context.Context) error
	// ReadRawRow reads the row at `index` among the currently revealed rows.
	ReadRawRow(ctx context.Context, index int) (ranking.RawRow, error)
	Close() error
}

type Options struct {
	URL    string
	Layout ranking.Layout
	Reveal reveal.Options
	// ContentTimeout bounds the wait for the ranking container to appear.
	ContentTimeout time.Duration
	// ConsentDelay is waited after dismissing the consent prompt.
	ConsentDelay time.Duration
	// ReloadOnMissingContent reloads the page once and waits again before giving up.
	ReloadOnMissingContent bool
}

type Outcome string

const (
	OutcomeWritten Outcome = "written"
	OutcomeNoData  Outcome = "no_data"
)

type Output struct {
	Sink     string
	Location string
}

// Report summarizes a run.
type Report struct {
	RunID   string
	Time    time.Time
	Reveal  reveal.Result
	Decoded int
	Skipped int
	Outcome Outcome
	Outputs []Output
	Batch   ranking.Batch
}

type Pipeline struct {
	browser Browser
	sinks   []sink.Sink
	driver  reveal.Driver
	clock   chrono.API
	tel     telemetry.API
}

func NewPipeline(browser Browser, sinks []sink.Sink, clock chrono.API, tel telemetry.API) Pipeline {
	assert.NotNil(browser)
	assert.NotNil(clock)
	assert.NotNil(tel)
	return Pipeline{
		browser: browser,
		sinks:   sinks,
		driver:  reveal.NewDriver(clock, tel),
		clock:   clock,
		tel:     telemetry.NewScopedAPI("pipeline", tel),
	}
}

func newRunID() string {
	id, err := random.String(8)
	if err != nil {
		return fmt.Sprint(time.Now().UnixNano())
	}
	return id
}

// Run opens a page, reveals rows until saturation or exhaustion, decodes every revealed
// row and hands the batch to every sink.
//
// An empty batch is not an error, the sinks are skipped and the report has OutcomeNoData.
// Sink errors are joined and returned after every sink was attempted, alongside the report.
func (p Pipeline) Run(ctx context.Context, opts Options) (Report, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	report := Report{
		RunID: newRunID(),
		Time:  p.clock.Now(),
	}
	span.SetAttributes(attribute.String("run_id", report.RunID))

	batch, result, skipped, err := p.scrape(ctx, opts)
	report.Reveal = result
	report.Batch = batch
	report.Decoded = batch.Len()
	report.Skipped = skipped
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return report, err
	}

	if batch.Empty() {
		p.tel.ReportWarning(report_pipeline_extract, "no data", report.Reveal.FinalCount, skipped)
		report.Outcome = OutcomeNoData
		return report, nil
	}

	outputs, err := p.write(ctx, batch, sink.RunInfo{ID: report.RunID, Time: report.Time})
	report.Outputs = outputs
	report.Outcome = OutcomeWritten
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sink write failed")
		return report, err
	}

	p.tel.ReportDebug(report_pipeline_complete, report.RunID, report.Decoded, report.Skipped)
	return report, nil
}

// scrape owns the page, it is closed before returning on every path.
func (p Pipeline) scrape(ctx context.Context, opts Options) (batch ranking.Batch, result reveal.Result, skipped int, err error) {
	batch.Layout = opts.Layout

	page, err := p.browser.Open(ctx)
	if err != nil {
		p.tel.ReportBroken(report_browser_open, err)
		return batch, result, 0, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		closeErr := page.Close()
		if closeErr != nil {
			p.tel.ReportWarning(report_page_close, closeErr)
		}
	}()

	// navigation is best effort, the content wait decides whether the page is usable
	err = page.Navigate(ctx, opts.URL)
	if err != nil {
		if ctx.Err() != nil {
			return batch, result, 0, ctx.Err()
		}
		p.tel.ReportWarning(report_page_navigate, err, opts.URL)
	}

	err = p.dismissConsent(ctx, page, opts)
	if err != nil {
		return batch, result, 0, err
	}

	err = p.waitForContent(ctx, page, opts)
	if err != nil {
		return batch, result, 0, err
	}

	revealCtx, revealSpan := tracer.Start(ctx, "pipeline.reveal")
	result, err = p.driver.Reveal(revealCtx, page, opts.Reveal)
	revealSpan.SetAttributes(
		attribute.Int("final_count", result.FinalCount),
		attribute.Int("attempts_used", result.AttemptsUsed),
		attribute.String("state", result.State.String()),
	)
	revealSpan.End()
	if err != nil {
		return batch, result, 0, fmt.Errorf("reveal rows: %w", err)
	}
	if !result.Saturated {
		p.tel.ReportWarning(
			report_pipeline_reveal,
			fmt.Sprintf("revealed %d of %d rows", result.FinalCount, opts.Reveal.TargetCount),
			result.AttemptsUsed,
		)
	}

	batch, skipped, err = p.extract(ctx, page, opts.Layout, result.FinalCount)
	return batch, result, skipped, err
}

// dismissConsent is best effort, only cancellation is returned.
func (p Pipeline) dismissConsent(ctx context.Context, page Page, opts Options) error {
	present, err := page.HasConsentPrompt(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.tel.ReportWarning(report_page_consent, err)
		return nil
	}
	if !present {
		p.tel.ReportDebug(report_page_consent, "no consent prompt")
		return nil
	}

	err = page.DismissConsent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.tel.ReportWarning(report_page_consent, err)
		return nil
	}
	return p.clock.Sleep(ctx, opts.ConsentDelay)
}

func (p Pipeline) waitForContent(ctx context.Context, page Page, opts Options) error {
	found, err := page.WaitForContent(ctx, opts.ContentTimeout)
	if err != nil {
		p.tel.ReportBroken(report_page_content, err)
		return fmt.Errorf("wait for content: %w", err)
	}
	if found {
		return nil
	}
	if !opts.ReloadOnMissingContent {
		p.tel.ReportBroken(report_page_content, ErrContentNotFound, opts.URL)
		return ErrContentNotFound
	}

	p.tel.ReportWarning(report_page_content, "content not found, reloading", opts.URL)
	err = page.Reload(ctx)
	if err != nil {
		p.tel.ReportBroken(report_page_content, err)
		return fmt.Errorf("reload page: %w", err)
	}
	found, err = page.WaitForContent(ctx, opts.ContentTimeout)
	if err != nil {
		p.tel.ReportBroken(report_page_content, err)
		return fmt.Errorf("wait for content: %w", err)
	}
	if !found {
		p.tel.ReportBroken(report_page_content, ErrContentNotFound, opts.URL)
		return ErrContentNotFound
	}
	return nil
}

// extract decodes every currently revealed row in order. Rows that fail to decode are
// reported and skipped, they never abort the batch.
func (p Pipeline) extract(ctx context.Context, page Page, layout ranking.Layout, fallbackCount int) (ranking.Batch, int, error) {
	ctx, span := tracer.Start(ctx, "pipeline.extract")
	defer span.End()

	batch := ranking.Batch{Layout: layout}

	count, err := page.Measure(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return batch, 0, ctx.Err()
		}
		p.tel.ReportWarning(report_pipeline_extract, err, fallbackCount)
		count = fallbackCount
	}
	span.SetAttributes(attribute.Int("rows", count))

	skipped := 0
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			return batch, skipped, ctx.Err()
		}
		record, err := p.decodeRow(ctx, page, i, layout)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_decode, i, err)
			span.AddEvent("skip row", trace.WithAttributes(
				attribute.Int("index", i),
				attribute.String("err", err.Error()),
			))
			skipped++
			continue
		}
		batch.Records = append(batch.Records, record)
	}

	p.tel.ReportCount(report_pipeline_decoded, int64(batch.Len()))
	p.tel.ReportCount(report_pipeline_skipped, int64(skipped))
	return batch, skipped, nil
}

// decodeRow converts a panic in the page collaborator into a decode error.
func (p Pipeline) decodeRow(ctx context.Context, page Page, index int, layout ranking.Layout) (record ranking.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ranking.DecodeError{
				Reason: ranking.ReasonFieldRead,
				Cause:  fmt.Errorf("panic: %v", r),
			}
		}
	}()

	raw, err := page.ReadRawRow(ctx, index)
	if err != nil {
		return ranking.Record{}, &ranking.DecodeError{Reason: ranking.ReasonFieldRead, Cause: err}
	}
	return ranking.Decode(raw, layout)
}

func (p Pipeline) write(ctx context.Context, batch ranking.Batch, run sink.RunInfo) ([]Output, error) {
	var outputs []Output
	var errs []error
	for _, s := range p.sinks {
		location, err := s.Write(ctx, batch, run)
		if err != nil {
			p.tel.ReportBroken(report_sink_write, err, s.Name())
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		outputs = append(outputs, Output{Sink: s.Name(), Location: location})
	}
	return outputs, errors.Join(errs...)
}
