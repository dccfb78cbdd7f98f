package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"ccranking/internal/pipeline"
	"ccranking/internal/ranking"
	"ccranking/internal/reveal"
	"ccranking/pkg/configutil"

	"dario.cat/mergo"
)

var ErrInvalid = errors.New("invalid config")

const (
	BackendBrowser = "browser"
	BackendStatic  = "static"

	MissingContentReload = "reload"
	MissingContentAbort  = "abort"

	OutputCSV  = "csv"
	OutputXLSX = "xlsx"
)

type Delays struct {
	SettleMs    int `json:"settle_ms"`
	SecondaryMs int `json:"secondary_ms"`
	FinalMs     int `json:"final_ms"`
	ConsentMs   int `json:"consent_ms"`
}

type Selectors struct {
	Table         string `json:"table"`
	Rows          string `json:"rows"`
	Order         string `json:"order"`
	Name          string `json:"name"`
	Points        string `json:"points"`
	Wins          string `json:"wins"`
	ConsentText   string `json:"consent_text"`
	SecondaryText string `json:"secondary_text"`
}

type BrowserConfig struct {
	// RemoteURL is the devtools url of a running chrome, empty launches one.
	RemoteURL string `json:"remote_url"`
	Headless  *bool  `json:"headless"`
	UserAgent string `json:"user_agent"`
}

type StaticConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type HistoryConfig struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (h HistoryConfig) Enabled() bool {
	return h.File != "" || h.Url != ""
}

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

func (e EmailConfig) Enabled() bool {
	return e.Server != ""
}

type Config struct {
	Url               string        `json:"url"`
	TargetCount       int           `json:"target_count"`
	MaxScrollAttempts int           `json:"max_scroll_attempts"`
	OutputFolder      string        `json:"output_folder"`
	FilePrefix        string        `json:"file_prefix"`
	Layout            string        `json:"layout"`
	Timezone          string        `json:"timezone"`
	Backend           string        `json:"backend"`
	OnMissingContent  string        `json:"on_missing_content"`
	ContentTimeoutMs  int           `json:"content_timeout_ms"`
	ScrollIncrement   int           `json:"scroll_increment"`
	Delays            Delays        `json:"delays"`
	Selectors         Selectors     `json:"selectors"`
	Browser           BrowserConfig `json:"browser"`
	Static            StaticConfig  `json:"static"`
	Outputs           []string      `json:"outputs"`
	History           HistoryConfig `json:"history"`
	Email             EmailConfig   `json:"email"`
}

// Defaults leaves browser.headless nil so that mergo keeps an explicit false,
// Headless() reads nil as true.
func Defaults() Config {
	return Config{
		Url:               "https://na.finalfantasyxiv.com/lodestone/ranking/crystallineconflict/?dcgroup=Dynamis",
		TargetCount:       300,
		MaxScrollAttempts: 50,
		OutputFolder:      "scraped_data",
		FilePrefix:        "crystalline_conflict_rankings",
		Layout:            ranking.LayoutWorldAndGroup.String(),
		Timezone:          "Local",
		Backend:           BackendBrowser,
		OnMissingContent:  MissingContentReload,
		ContentTimeoutMs:  10000,
		ScrollIncrement:   800,
		Delays: Delays{
			SettleMs:    700,
			SecondaryMs: 500,
			FinalMs:     1500,
			ConsentMs:   500,
		},
		Selectors: Selectors{
			Table:         ".cc-ranking__table",
			Rows:          ".cc-ranking__table > div",
			Order:         ".order",
			Name:          ".name",
			Points:        ".points",
			Wins:          ".wins",
			ConsentText:   "Accept",
			SecondaryText: "Show More",
		},
		Static: StaticConfig{
			RequestsPerSecond: 2,
		},
		Outputs: []string{OutputCSV},
		Email: EmailConfig{
			Port: 587,
		},
	}
}

// Load reads the config at `path` (and its .local override), fills every unset field
// from Defaults and validates the result. A missing file is the same as an empty one.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	err = mergo.Merge(&cfg, Defaults())
	if err != nil {
		return Config{}, fmt.Errorf("merge defaults: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c Config) Validate() error {
	if c.Url == "" {
		return invalid("url is empty")
	}
	if c.TargetCount < 1 {
		return invalid("target_count must be positive, got %d", c.TargetCount)
	}
	if c.MaxScrollAttempts < 1 {
		return invalid("max_scroll_attempts must be positive, got %d", c.MaxScrollAttempts)
	}
	if c.OutputFolder == "" || c.FilePrefix == "" {
		return invalid("output_folder and file_prefix cannot be empty")
	}
	_, err := ranking.ParseLayout(c.Layout)
	if err != nil {
		return invalid("%s", err.Error())
	}
	_, err = time.LoadLocation(c.Timezone)
	if err != nil {
		return invalid("timezone: %s", err.Error())
	}
	if c.Backend != BackendBrowser && c.Backend != BackendStatic {
		return invalid("unknown backend '%s'", c.Backend)
	}
	if c.OnMissingContent != MissingContentReload && c.OnMissingContent != MissingContentAbort {
		return invalid("unknown on_missing_content policy '%s'", c.OnMissingContent)
	}
	for _, output := range c.Outputs {
		if output != OutputCSV && output != OutputXLSX {
			return invalid("unknown output '%s'", output)
		}
	}
	if c.Delays.SettleMs < 0 || c.Delays.SecondaryMs < 0 || c.Delays.FinalMs < 0 || c.Delays.ConsentMs < 0 {
		return invalid("delays cannot be negative")
	}
	if c.Email.Enabled() && len(c.Email.To) == 0 {
		return invalid("email is configured without recipients")
	}
	return nil
}

func (c Config) HasOutput(output string) bool {
	return slices.Contains(c.Outputs, output)
}

func (c Config) Headless() bool {
	return c.Browser.Headless == nil || *c.Browser.Headless
}

func (c Config) RankingLayout() ranking.Layout {
	layout, err := ranking.ParseLayout(c.Layout)
	if err != nil {
		return ranking.LayoutWorldAndGroup
	}
	return layout
}

func (c Config) RankingSelectors() ranking.Selectors {
	return ranking.Selectors{
		Table: c.Selectors.Table,
		Rows:  c.Selectors.Rows,
		Cells: map[ranking.Field]string{
			ranking.FieldOrder:  c.Selectors.Order,
			ranking.FieldName:   c.Selectors.Name,
			ranking.FieldPoints: c.Selectors.Points,
			ranking.FieldWins:   c.Selectors.Wins,
		},
		ConsentText:   c.Selectors.ConsentText,
		SecondaryText: c.Selectors.SecondaryText,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		URL:    c.Url,
		Layout: c.RankingLayout(),
		Reveal: reveal.Options{
			TargetCount:    c.TargetCount,
			MaxAttempts:    c.MaxScrollAttempts,
			SettleDelay:    millis(c.Delays.SettleMs),
			SecondaryDelay: millis(c.Delays.SecondaryMs),
			FinalDelay:     millis(c.Delays.FinalMs),
		},
		ContentTimeout:         millis(c.ContentTimeoutMs),
		ConsentDelay:           millis(c.Delays.ConsentMs),
		ReloadOnMissingContent: c.OnMissingContent == MissingContentReload,
	}
}
