// Command soopstat serves streamer dashboard stats and channel notices
// over HTTP, scraping on demand through a managed headless browser and
// crawling notice boards on an interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/soopstat/api"
	"github.com/hazyhaar/soopstat/cache"
	"github.com/hazyhaar/soopstat/notices"
	"github.com/hazyhaar/soopstat/scrape"
)

type appConfig struct {
	Listen         string        `yaml:"listen"`
	DBPath         string        `yaml:"db_path"`
	LogLevel       string        `yaml:"log_level"`
	StatsTTL       time.Duration `yaml:"stats_ttl"`
	NoticeInterval time.Duration `yaml:"notice_interval"`

	Scrape  scrape.Config  `yaml:"scrape"`
	Notices notices.Config `yaml:"notices"`
}

func (c *appConfig) defaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "soopstat.db"
	}
	if c.StatsTTL <= 0 {
		c.StatsTTL = time.Hour
	}
	if c.NoticeInterval <= 0 {
		c.NoticeInterval = 6 * time.Hour
	}
}

func loadConfig(path string) (appConfig, error) {
	var cfg appConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.defaults()
	return cfg, nil
}

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config")
		listen     = flag.String("listen", "", "listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "soopstat:", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	st, err := notices.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	scraper := scrape.New(cfg.Scrape, log)
	defer scraper.Close()

	statsCache := cache.New(cfg.StatsTTL, func(ctx context.Context, target string) (scrape.Result, error) {
		var res scrape.Result
		// Registered targets may carry a custom monitor URL.
		if t, err := st.GetTarget(ctx, target); err == nil && t.MonitorURL != "" {
			res = scraper.ScrapeURL(ctx, target, t.MonitorURL)
		} else {
			res = scraper.Scrape(ctx, target)
		}
		if !res.Success {
			// Surfacing the failure as an error lets the cache fall back
			// to its stale entry.
			return res, errors.New(res.Error)
		}
		return res, nil
	}, log)

	crawler := notices.NewCrawler(cfg.Notices, scraper.FetchHTML, st, log)
	runner := notices.NewRunner(crawler, cfg.NoticeInterval, log)
	go runner.Run(ctx)

	handler := api.New(api.Deps{
		Stats: func(ctx context.Context, target string, force bool) (scrape.Result, time.Time, error) {
			if force {
				return statsCache.GetFresh(ctx, target)
			}
			return statsCache.Get(ctx, target)
		},
		ListNotices:  st.ListNotices,
		Refresh:      crawler.CrawlAll,
		OpenSessions: scraper.OpenSessions,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Listen, "db", cfg.DBPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		return err
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
