package scrape

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/soopstat/scrape/internal/browser"
)

// Config configures the scrape pipeline. Zero values get sane defaults;
// the struct is YAML-mappable for file configuration.
type Config struct {
	// BaseURL is the dashboard URL prefix the target id is appended to.
	BaseURL string `yaml:"base_url"`

	// NavigationTimeout bounds one page navigation. Default: 20s.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	// ReadinessTimeout bounds the content-marker wait after navigation.
	// Default: 5s.
	ReadinessTimeout time.Duration `yaml:"readiness_timeout"`
	// TotalTimeout is the ceiling for a whole scrape including retries.
	// Default: 60s.
	TotalTimeout time.Duration `yaml:"total_timeout"`

	// MaxAttempts is the number of full navigation attempts (first try
	// plus reload retries). Default: 2.
	MaxAttempts int `yaml:"max_attempts"`

	// SkipCharts disables chart series extraction.
	SkipCharts bool `yaml:"skip_charts"`

	Browser BrowserConfig `yaml:"browser"`
}

// BrowserConfig is the browser subset of Config, mirrored here so callers
// outside the internal tree can set it from YAML.
type BrowserConfig struct {
	// Policy is "shared" or "fresh". Default: shared.
	Policy string `yaml:"policy"`
	// RemoteURL connects to an already-running Chrome instead of
	// launching one.
	RemoteURL string `yaml:"remote_url"`
	// Headless defaults to true.
	Headless       *bool  `yaml:"headless"`
	UserAgent      string `yaml:"user_agent"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	// BlockResources lists resource types to drop (fonts, images,
	// stylesheets, media). Default: fonts.
	BlockResources []string `yaml:"block_resources"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://bcraping.kr/monitor/"
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 20 * time.Second
	}
	if c.ReadinessTimeout <= 0 {
		c.ReadinessTimeout = 5 * time.Second
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
}

func (c *Config) browserConfig(log *slog.Logger) browser.Config {
	return browser.Config{
		Policy:           browser.Policy(c.Browser.Policy),
		RemoteURL:        c.Browser.RemoteURL,
		Headless:         c.Browser.Headless,
		UserAgent:        c.Browser.UserAgent,
		ViewportWidth:    c.Browser.ViewportWidth,
		ViewportHeight:   c.Browser.ViewportHeight,
		ResourceBlocking: c.Browser.BlockResources,
		Logger:           log,
	}
}
