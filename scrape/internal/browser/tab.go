package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page configured for extraction: stealth-created, fixed
// viewport, realistic user agent, resource blocking applied.
type Tab struct {
	Page *rod.Page

	release func()
	closed  bool
}

func newTab(ctx context.Context, b *rod.Browser, cfg *Config) (*Tab, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	page = page.Context(ctx)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set user agent: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}

	if len(cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, cfg.ResourceBlocking); err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	return &Tab{Page: page}, nil
}

// Close closes the tab and, under the fresh policy, its dedicated browser.
// Safe to call more than once.
func (t *Tab) Close() {
	if t.closed {
		return
	}
	t.closed = true
	if t.Page != nil {
		t.Page.Close()
	}
	if t.release != nil {
		t.release()
	}
}
