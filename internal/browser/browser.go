// Package browser drives a real chrome instance over the devtools protocol, it is
// needed for ranking pages that only render rows while being scrolled.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ccranking/internal/components/assert"
	"ccranking/internal/components/telemetry"
	"ccranking/internal/pipeline"
	"ccranking/internal/ranking"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	report_browser_open = "browser.open"
	report_page_console = "page.console"
)

type Options struct {
	Selectors ranking.Selectors
	// RemoteURL attaches to an already running chrome (ex. ws://127.0.0.1:9222) instead
	// of launching one.
	RemoteURL string
	Headless  bool
	UserAgent string
	// ScrollIncrement is how many pixels Advance scrolls down, 0 means 800.
	ScrollIncrement int
}

type Browser struct {
	opts Options
	tel  telemetry.API
}

func NewBrowser(opts Options, tel telemetry.API) Browser {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Selectors.Rows)
	assert.NotEmptyStr(opts.Selectors.Table)
	if opts.ScrollIncrement <= 0 {
		opts.ScrollIncrement = 800
	}
	return Browser{
		opts: opts,
		tel:  telemetry.NewScopedAPI("browser", tel),
	}
}

func (b Browser) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.opts.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, b.opts.RemoteURL)
	}
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
	)
	if b.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

// Open starts (or attaches to) chrome and opens a blank tab. The tab lives until Close
// or until ctx is cancelled.
func (b Browser) Open(ctx context.Context) (pipeline.Page, error) {
	allocCtx, cancelAlloc := b.allocator(ctx)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			args := make([]string, len(ev.Args))
			for i, arg := range ev.Args {
				args[i] = string(arg.Value)
			}
			b.tel.ReportDebug(report_page_console, string(ev.Type), strings.Join(args, " "))
		}
	})

	// the first Run launches the browser
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancelTab()
		cancelAlloc()
		b.tel.ReportBroken(report_browser_open, err, b.opts.RemoteURL)
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &page{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        b.opts,
	}, nil
}

type page struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
}

// run executes actions on the tab, giving up when either ctx or the tab is done.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tabCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tabCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// jsValue encodes v as a JS literal. Selectors keep their '>' combinators as is.
func jsValue(v any) string {
	var buff bytes.Buffer
	encoder := json.NewEncoder(&buff)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(v)
	return strings.TrimSuffix(buff.String(), "\n")
}

// buttonScript evaluates to true when a button labelled with `text` exists, clicking
// it first when `click` is set.
func buttonScript(text string, click bool) string {
	return fmt.Sprintf(`(() => {
	const button = Array.from(document.querySelectorAll("button, a, [role=button]"))
		.find((el) => el.offsetParent !== null && (el.innerText || "").includes(%s));
	if (!button) {
		return false;
	}
	if (%t) {
		button.click();
	}
	return true;
})()`, jsValue(text), click)
}

func countScript(rows string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsValue(rows))
}

func scrollScript(increment int) string {
	return fmt.Sprintf(`(() => { window.scrollBy(0, %d); return true; })()`, increment)
}

// rowScript evaluates to {found, cells} where a cell is null when its element is missing.
func rowScript(selectors ranking.Selectors, index int) string {
	cells := make(map[string]string, len(selectors.Cells))
	for field, selector := range selectors.Cells {
		cells[string(field)] = selector
	}

	return fmt.Sprintf(`(() => {
	const row = document.querySelectorAll(%s)[%d];
	if (!row) {
		return { found: false, cells: {} };
	}
	const cells = {};
	for (const [field, selector] of Object.entries(%s)) {
		const el = row.querySelector(selector);
		cells[field] = el ? el.innerText : null;
	}
	return { found: true, cells };
})()`, jsValue(selectors.Rows), index, jsValue(cells))
}

type rowResult struct {
	Found bool               `json:"found"`
	Cells map[string]*string `json:"cells"`
}

func (r rowResult) snapshot(selectors ranking.Selectors, index int) ranking.Snapshot {
	snapshot := ranking.Snapshot{
		Index:  index,
		Texts:  make(map[ranking.Field]string, len(ranking.Fields)),
		Errors: map[ranking.Field]error{},
	}
	for _, field := range ranking.Fields {
		text := r.Cells[string(field)]
		if text == nil {
			snapshot.Errors[field] = fmt.Errorf("no element matches '%s'", selectors.Cells[field])
			continue
		}
		snapshot.Texts[field] = *text
	}
	return snapshot
}

func (p *page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *page) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

func (p *page) HasConsentPrompt(ctx context.Context) (bool, error) {
	if p.opts.Selectors.ConsentText == "" {
		return false, nil
	}
	var present bool
	err := p.run(ctx, chromedp.Evaluate(buttonScript(p.opts.Selectors.ConsentText, false), &present))
	return present, err
}

func (p *page) DismissConsent(ctx context.Context) error {
	var clicked bool
	err := p.run(ctx, chromedp.Evaluate(buttonScript(p.opts.Selectors.ConsentText, true), &clicked))
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("consent button '%s' disappeared", p.opts.Selectors.ConsentText)
	}
	return nil
}

func (p *page) WaitForContent(ctx context.Context, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.run(waitCtx, chromedp.WaitReady(p.opts.Selectors.Table, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *page) Measure(ctx context.Context) (int, error) {
	var count int
	err := p.run(ctx, chromedp.Evaluate(countScript(p.opts.Selectors.Rows), &count))
	return count, err
}

func (p *page) Advance(ctx context.Context) error {
	var ok bool
	return p.run(ctx, chromedp.Evaluate(scrollScript(p.opts.ScrollIncrement), &ok))
}

func (p *page) HasSecondaryTrigger(ctx context.Context) (bool, error) {
	if p.opts.Selectors.SecondaryText == "" {
		return false, nil
	}
	var present bool
	err := p.run(ctx, chromedp.Evaluate(buttonScript(p.opts.Selectors.SecondaryText, false), &present))
	return present, err
}

func (p *page) TriggerSecondary(ctx context.Context) error {
	var clicked bool
	return p.run(ctx, chromedp.Evaluate(buttonScript(p.opts.Selectors.SecondaryText, true), &clicked))
}

func (p *page) ReadRawRow(ctx context.Context, index int) (ranking.RawRow, error) {
	var res rowResult
	err := p.run(ctx, chromedp.Evaluate(rowScript(p.opts.Selectors, index), &res))
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, fmt.Errorf("row %d is no longer on the page", index)
	}
	return res.snapshot(p.opts.Selectors, index), nil
}

// Close closes the tab and, when it was launched by Open, the browser.
func (p *page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancelTab()
	p.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
