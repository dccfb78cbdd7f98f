// Package htmlpage serves ranking pages that are rendered on the server, every row is
// considered revealed as soon as the document is fetched.
package htmlpage

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"ccranking/internal/components/assert"
	"ccranking/internal/components/telemetry"
	"ccranking/internal/pipeline"
	"ccranking/internal/ranking"
	"ccranking/pkg/htmlutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_page_fetch = "page.fetch"
	report_page_parse = "page.parse"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	Selectors ranking.Selectors
	// RequestsPerSecond limits page fetches, 0 means 2.
	RequestsPerSecond float64
	UserAgent         string
	Timeout           time.Duration
}

type Browser struct {
	http      *resty.Client
	selectors ranking.Selectors
	tel       telemetry.API
}

func NewBrowser(opts Options, tel telemetry.API) (Browser, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Selectors.Rows)

	tel = telemetry.NewScopedAPI("htmlpage", tel)

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return Browser{}, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient.SetHeader("user-agent", userAgent)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient.SetTimeout(timeout)

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	// burst >= 1 so no request is ever dropped, only delayed
	rateLimiter := rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return Browser{
		http:      httpClient,
		selectors: opts.Selectors,
		tel:       tel,
	}, nil
}

func (b Browser) Open(ctx context.Context) (pipeline.Page, error) {
	return &page{browser: b}, nil
}

type page struct {
	browser Browser
	url     string
	doc     *goquery.Document
	closed  bool
}

func (p *page) fetch(ctx context.Context) error {
	if p.closed {
		return fmt.Errorf("page is closed")
	}
	res, err := p.browser.http.R().
		SetContext(ctx).
		Get(p.url)
	if err != nil {
		p.browser.tel.ReportBroken(report_page_fetch, err, p.url)
		return fmt.Errorf("fetch %s: %w", p.url, err)
	}
	if res.IsError() {
		err = fmt.Errorf("fetch %s: unexpected status %s", p.url, res.Status())
		p.browser.tel.ReportBroken(report_page_fetch, err)
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		p.browser.tel.ReportBroken(report_page_parse, err, p.url)
		return fmt.Errorf("parse %s: %w", p.url, err)
	}
	p.doc = doc
	return nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	p.url = url
	return p.fetch(ctx)
}

func (p *page) Reload(ctx context.Context) error {
	return p.fetch(ctx)
}

// HasConsentPrompt is always false, consent prompts are rendered by scripts.
func (p *page) HasConsentPrompt(ctx context.Context) (bool, error) {
	return false, nil
}

func (p *page) DismissConsent(ctx context.Context) error {
	return nil
}

func (p *page) WaitForContent(ctx context.Context, timeout time.Duration) (bool, error) {
	if p.doc == nil {
		return false, nil
	}
	return p.doc.Find(p.browser.selectors.Table).Length() > 0, nil
}

func (p *page) rows() (*goquery.Selection, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("page has not been navigated")
	}
	return p.doc.Find(p.browser.selectors.Rows), nil
}

func (p *page) Measure(ctx context.Context) (int, error) {
	rows, err := p.rows()
	if err != nil {
		return 0, err
	}
	return rows.Length(), nil
}

func (p *page) Advance(ctx context.Context) error {
	return nil
}

func (p *page) HasSecondaryTrigger(ctx context.Context) (bool, error) {
	return false, nil
}

func (p *page) TriggerSecondary(ctx context.Context) error {
	return nil
}

func (p *page) ReadRawRow(ctx context.Context, index int) (ranking.RawRow, error) {
	rows, err := p.rows()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= rows.Length() {
		return nil, fmt.Errorf("row %d out of range (%d rows)", index, rows.Length())
	}
	row := rows.Eq(index)

	snapshot := ranking.Snapshot{
		Index:  index,
		Texts:  make(map[ranking.Field]string, len(ranking.Fields)),
		Errors: map[ranking.Field]error{},
	}
	for _, field := range ranking.Fields {
		selector := p.browser.selectors.Cells[field]
		text, ok := htmlutil.FirstText(row.Find(selector))
		if !ok {
			snapshot.Errors[field] = fmt.Errorf("no element matches '%s'", selector)
			continue
		}
		snapshot.Texts[field] = text
	}
	return snapshot, nil
}

func (p *page) Close() error {
	p.closed = true
	p.doc = nil
	return nil
}
