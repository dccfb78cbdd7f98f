package htmlpage

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"ccranking/internal/components/telemetry"
	"ccranking/internal/pipeline"
	"ccranking/internal/ranking"
	"ccranking/internal/reveal"
	"ccranking/internal/sink"

	"github.com/stretchr/testify/require"
)

const fixture = `<!DOCTYPE html>
<html><body>
<div class="cc-ranking__table">
	<div>
		<p class="order">1</p>
		<div class="name"><h3>Aaa Bbb</h3><p>Mateus
			[Crystal]</p></div>
		<p class="points">1,900 <span>+35</span></p>
		<p class="wins">80 <span>+4</span></p>
	</div>
	<div>
		<p class="order">2</p>
		<p class="points">1,850 +10</p>
		<p class="wins">77 +2</p>
	</div>
	<div>
		<p class="order">3</p>
		<div class="name">Eee Fff Zalera [Crystal]</div>
		<p class="points">1,800</p>
		<p class="wins">70</p>
	</div>
</div>
</body></html>`

func fixtureServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ranking" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "text/html")
		w.Write([]byte(fixture))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestBrowser(t *testing.T) Browser {
	browser, err := NewBrowser(Options{
		Selectors:         ranking.DefaultSelectors(),
		RequestsPerSecond: 100,
	}, &telemetry.Recorder{})
	require.NoError(t, err)
	return browser
}

func TestPage(t *testing.T) {
	var hits atomic.Int32
	server := fixtureServer(t, &hits)
	ctx := context.Background()

	page, err := newTestBrowser(t).Open(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, server.URL+"/ranking"))

	found, err := page.WaitForContent(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, found)

	count, err := page.Measure(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	raw, err := page.ReadRawRow(ctx, 0)
	require.NoError(t, err)
	record, err := ranking.Decode(raw, ranking.LayoutWorldAndGroup)
	require.NoError(t, err)
	require.Equal(t, ranking.Record{
		Rank:       "1",
		PlayerName: "Aaa Bbb",
		World:      "Mateus",
		Group:      "Crystal",
		Score:      "1,900",
		ScoreDelta: "35",
		Wins:       "80",
		WinsDelta:  "4",
	}, record)

	raw, err = page.ReadRawRow(ctx, 1)
	require.NoError(t, err)
	_, err = raw.Text(ranking.FieldName)
	require.Error(t, err, "missing name element")

	_, err = page.ReadRawRow(ctx, 3)
	require.Error(t, err)

	require.NoError(t, page.Reload(ctx))
	require.EqualValues(t, 2, hits.Load())

	require.NoError(t, page.Close())
	require.Error(t, page.Reload(ctx))
}

func TestPageNotFound(t *testing.T) {
	var hits atomic.Int32
	server := fixtureServer(t, &hits)

	page, err := newTestBrowser(t).Open(context.Background())
	require.NoError(t, err)
	err = page.Navigate(context.Background(), server.URL+"/missing")
	require.ErrorContains(t, err, "404")
}

func TestStaticPipeline(t *testing.T) {
	var hits atomic.Int32
	server := fixtureServer(t, &hits)

	clock := &stubClock{}
	folder := t.TempDir()
	csvSink := sink.NewCSV(folder, "rankings")

	report, err := pipeline.NewPipeline(newTestBrowser(t), []sink.Sink{csvSink}, clock, &telemetry.Recorder{}).Run(
		context.Background(),
		pipeline.Options{
			URL:    server.URL + "/ranking",
			Layout: ranking.LayoutWorldAndGroup,
			Reveal: reveal.Options{
				TargetCount: 300,
				MaxAttempts: 3,
			},
			ReloadOnMissingContent: true,
		},
	)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeWritten, report.Outcome)
	require.Equal(t, reveal.StateExhausted, report.Reveal.State)
	require.Equal(t, 3, report.Reveal.FinalCount)
	require.Equal(t, 2, report.Decoded)
	require.Equal(t, 1, report.Skipped)
	require.Len(t, report.Outputs, 1)

	f, err := os.Open(report.Outputs[0].Location)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Rank", "Name", "World", "Datacenter", "Credits", "Victories", "Credits Gained", "Victories Gained"},
		{"1", "Aaa Bbb", "Mateus", "Crystal", "1,900", "80", "35", "4"},
		{"3", "Eee Fff", "Zalera", "Crystal", "1,800", "70", "", ""},
	}, rows)
}

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

func (stubClock) Location() *time.Location { return time.UTC }

func (stubClock) Sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
