// Command soopcrawl is the one-shot companion to the soopstat daemon:
// scrape a single target's stats to stdout, run one notice crawl pass, or
// manage the crawl target roster.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hazyhaar/soopstat/notices"
	"github.com/hazyhaar/soopstat/scrape"
)

func main() {
	var (
		dbPath    = flag.String("db", "soopstat.db", "notices database path")
		statsID   = flag.String("stats", "", "scrape stats for this streamer id and print JSON")
		crawl     = flag.Bool("crawl", false, "run one notice crawl pass over the target roster")
		only      = flag.String("targets", "", "with -crawl, limit to these comma-separated streamer ids")
		addTarget = flag.String("add", "", "add a crawl target, id or id:name")
		timeout   = flag.Duration("timeout", 5*time.Minute, "overall timeout")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	lvl := slog.LevelWarn
	if *verbose {
		lvl = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, *dbPath, *statsID, *crawl, *only, *addTarget, log); err != nil {
		fmt.Fprintln(os.Stderr, "soopcrawl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath, statsID string, crawl bool, only, addTarget string, log *slog.Logger) error {
	switch {
	case statsID != "":
		return runStats(ctx, statsID, log)
	case addTarget != "":
		return runAddTarget(ctx, dbPath, addTarget)
	case crawl:
		return runCrawl(ctx, dbPath, only, log)
	default:
		return fmt.Errorf("nothing to do: pass -stats, -crawl or -add")
	}
}

func runStats(ctx context.Context, target string, log *slog.Logger) error {
	scraper := scrape.New(scrape.Config{}, log)
	defer scraper.Close()

	res := scraper.Scrape(ctx, target)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runCrawl(ctx context.Context, dbPath, only string, log *slog.Logger) error {
	st, err := notices.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	scraper := scrape.New(scrape.Config{}, log)
	defer scraper.Close()

	crawler := notices.NewCrawler(notices.Config{}, scraper.FetchHTML, st, log)

	var sum notices.Summary
	if only == "" {
		sum, err = crawler.CrawlAll(ctx)
	} else {
		var targets []notices.Target
		for _, id := range strings.Split(only, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			t, err := st.GetTarget(ctx, id)
			if err != nil {
				// Unregistered ids still crawl with the default URLs.
				t = notices.Target{StreamerID: id, StreamerName: id, Enabled: true}
			}
			targets = append(targets, t)
		}
		sum, err = crawler.CrawlTargets(ctx, targets)
	}
	if err != nil {
		return err
	}
	fmt.Printf("targets=%d failed=%d found=%d inserted=%d\n",
		sum.Targets, sum.Failed, sum.Found, sum.Inserted)
	return nil
}

func runAddTarget(ctx context.Context, dbPath, spec string) error {
	id, name, ok := strings.Cut(spec, ":")
	if !ok {
		name = id
	}
	if id == "" {
		return fmt.Errorf("empty target id")
	}

	st, err := notices.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.PutTarget(ctx, notices.Target{StreamerID: id, StreamerName: name, Enabled: true}); err != nil {
		return err
	}
	fmt.Printf("added %s (%s)\n", id, name)
	return nil
}
