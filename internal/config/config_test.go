package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ccranking/internal/ranking"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "ccranking.json5"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.True(t, cfg.Headless())
	require.True(t, cfg.HasOutput(OutputCSV))
	require.False(t, cfg.History.Enabled())
	require.False(t, cfg.Email.Enabled())
}

func TestLoadMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ccranking.json5")

	err := os.WriteFile(path, []byte(`{
		// trimmed down run
		target_count: 100,
		layout: "world_only",
		outputs: ["csv", "xlsx"],
		delays: { settle_ms: 300 },
		browser: { headless: false },
	}`), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "ccranking.local.json5"), []byte(`{
		target_count: 25,
		history: { file: "history.db" },
	}`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 25, cfg.TargetCount)
	require.Equal(t, 50, cfg.MaxScrollAttempts)
	require.Equal(t, ranking.LayoutWorldOnly, cfg.RankingLayout())
	require.True(t, cfg.HasOutput(OutputXLSX))
	require.False(t, cfg.Headless())
	require.True(t, cfg.History.Enabled())

	opts := cfg.PipelineOptions()
	require.Equal(t, 300*time.Millisecond, opts.Reveal.SettleDelay)
	require.Equal(t, 1500*time.Millisecond, opts.Reveal.FinalDelay)
	require.Equal(t, 25, opts.Reveal.TargetCount)
	require.Equal(t, 10*time.Second, opts.ContentTimeout)
	require.True(t, opts.ReloadOnMissingContent)

	selectors := cfg.RankingSelectors()
	require.Equal(t, ranking.DefaultSelectors(), selectors)
}

func TestLoadHeadless(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected bool
	}{
		{name: "unset", content: `{}`, expected: true},
		{name: "true", content: `{ browser: { headless: true } }`, expected: true},
		{name: "false", content: `{ browser: { headless: false, user_agent: "ccranking" } }`, expected: false},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ccranking.json5")
			require.NoError(t, os.WriteFile(path, []byte(test.content), 0644))
			cfg, err := Load(path)
			require.NoError(t, err)
			require.Equal(t, test.expected, cfg.Headless())
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{name: "layout", modify: func(cfg *Config) { cfg.Layout = "group_only" }},
		{name: "backend", modify: func(cfg *Config) { cfg.Backend = "curl" }},
		{name: "policy", modify: func(cfg *Config) { cfg.OnMissingContent = "retry" }},
		{name: "output", modify: func(cfg *Config) { cfg.Outputs = []string{"parquet"} }},
		{name: "target", modify: func(cfg *Config) { cfg.TargetCount = -1 }},
		{name: "attempts", modify: func(cfg *Config) { cfg.MaxScrollAttempts = 0 }},
		{name: "timezone", modify: func(cfg *Config) { cfg.Timezone = "Not/AZone" }},
		{name: "delays", modify: func(cfg *Config) { cfg.Delays.FinalMs = -5 }},
		{name: "email", modify: func(cfg *Config) { cfg.Email.Server = "smtp.example.com" }},
	}

	require.NoError(t, Defaults().Validate())
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			cfg := Defaults()
			test.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccranking.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{ backend: "curl" }`), 0644))
	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, os.WriteFile(path, []byte(`{ backend: `), 0644))
	_, err = Load(path)
	require.Error(t, err)
}
