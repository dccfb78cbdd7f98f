package commands

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ccranking/internal/components/telemetry"
	"ccranking/internal/history"
	historydb "ccranking/internal/history/db"
	"ccranking/internal/pipeline"

	"github.com/stretchr/testify/require"
)

const rankingPage = `<html><body><div class="cc-ranking__table">
	<div><p class="order">1</p><p class="name">Aaa Bbb Mateus [Crystal]</p><p class="points">1900 +35</p><p class="wins">80 +4</p></div>
</div></body></html>`

func writeConfig(t *testing.T, url string) (string, string) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "history.db")
	path := filepath.Join(dir, "ccranking.json5")
	err := os.WriteFile(path, []byte(fmt.Sprintf(`{
		url: %q,
		backend: "static",
		on_missing_content: "abort",
		timezone: "UTC",
		target_count: 1,
		max_scroll_attempts: 1,
		delays: { settle_ms: 1, secondary_ms: 1, final_ms: 1, consent_ms: 1 },
		output_folder: %q,
		history: { file: %q },
	}`, url, filepath.Join(dir, "out"), dbFile)), 0644)
	require.NoError(t, err)
	return path, dbFile
}

func TestRunScrape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ranking" {
			w.Write([]byte(`<html><body>maintenance</body></html>`))
			return
		}
		w.Write([]byte(rankingPage))
	}))
	t.Cleanup(server.Close)

	t.Run("written", func(t *testing.T) {
		var dbFile string
		configPath, dbFile = writeConfig(t, server.URL+"/ranking")
		require.NoError(t, runScrape(context.Background()))

		database, err := historydb.Open(context.Background(), historydb.Config{File: dbFile})
		require.NoError(t, err)
		defer database.Close()
		runs, err := history.NewStore(database, &telemetry.Recorder{}).Runs(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		require.Equal(t, 1, runs[0].RecordCount)
	})

	t.Run("failure is returned", func(t *testing.T) {
		configPath, _ = writeConfig(t, server.URL+"/maintenance")
		err := runScrape(context.Background())
		require.ErrorIs(t, err, pipeline.ErrContentNotFound)
	})

	t.Run("invalid config is returned", func(t *testing.T) {
		configPath = filepath.Join(t.TempDir(), "ccranking.json5")
		require.NoError(t, os.WriteFile(configPath, []byte(`{ backend: "curl" }`), 0644))
		require.Error(t, runScrape(context.Background()))
	})
}
