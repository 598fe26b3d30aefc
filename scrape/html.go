package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/soopstat/scrape/internal/navigate"
)

// FetchHTML renders url in a managed tab and returns the document HTML.
// It backs the notice crawler, which parses boards out of process instead
// of driving the page. A first render that still looks like an unhydrated
// client-side shell gets one reload before giving up on hydration.
func (s *Scraper) FetchHTML(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	tab, err := s.mgr.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSession, err)
	}
	defer tab.Close()

	out := navigate.Do(ctx, tab.Page, url, navigate.Options{
		NavigationTimeout: s.cfg.NavigationTimeout,
		ReadinessTimeout:  2 * time.Second,
	})
	if out.State == navigate.Degraded && out.Err != nil && ctx.Err() != nil {
		return "", fmt.Errorf("scrape: fetch %s: %w", url, out.Err)
	}

	p := tab.Page.Context(ctx)
	doc, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("scrape: fetch %s: %w", url, err)
	}
	if navigate.Sufficient(doc) {
		return doc, nil
	}

	s.log.Debug("shell document, reloading once", "url", url)
	domReady := p.WaitEvent(&proto.PageDomContentEventFired{})
	if err := p.Reload(); err == nil {
		domReady()
	}
	doc, err = p.HTML()
	if err != nil {
		return "", fmt.Errorf("scrape: fetch %s: %w", url, err)
	}
	return doc, nil
}
