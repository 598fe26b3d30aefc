// Package browser manages the Chrome headless lifecycle for the extraction
// engine: launch, liveness checks, transparent relaunch after a crash, and
// per-scrape tab setup (stealth, user agent, viewport, resource blocking).
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrLaunch indicates the browser process could not be started or connected.
// It is fatal at this layer: retries belong to the extraction coordinator.
var ErrLaunch = errors.New("browser: launch failed")

// Policy selects how the manager maps scrapes to browser processes.
type Policy string

const (
	// PolicyShared reuses one long-lived Chrome across scrapes, with a
	// liveness check before reuse and transparent relaunch on disconnect.
	PolicyShared Policy = "shared"
	// PolicyFresh launches and fully tears down a Chrome per scrape,
	// trading startup latency for isolation between targets.
	PolicyFresh Policy = "fresh"
)

// Config configures the browser manager.
type Config struct {
	// Policy is the process policy. Default: PolicyShared.
	Policy Policy

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher. Forces PolicyShared.
	RemoteURL string

	// Headless controls the Chrome headless flag. Default: true.
	Headless *bool

	// UserAgent sent on every page. Default: a current desktop Chrome UA.
	UserAgent string

	// ViewportWidth/ViewportHeight fix the page viewport. Default: 1280×720.
	ViewportWidth  int
	ViewportHeight int

	// ResourceBlocking lists resource types to block (fonts, images,
	// stylesheets, media). Fonts are blocked by default.
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Policy == "" {
		c.Policy = PolicyShared
	}
	if c.RemoteURL != "" {
		c.Policy = PolicyShared
	}
	if c.Headless == nil {
		v := true
		c.Headless = &v
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 720
	}
	if c.ResourceBlocking == nil {
		c.ResourceBlocking = []string{"fonts"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns browser processes and hands out configured tabs.
// It is safe for concurrent use; the launch lock guarantees that concurrent
// callers never trigger two simultaneous relaunches of the shared process.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
	open    int // currently open tabs, all policies
}

// NewManager creates a browser Manager. No process is launched until the
// first Acquire (shared policy launches lazily).
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Acquire returns a tab ready for navigation: stealth-created, with the
// configured user agent, viewport and resource blocking applied.
// Under PolicyFresh the tab owns a dedicated Chrome that Release tears down.
func (m *Manager) Acquire(ctx context.Context) (*Tab, error) {
	if m.cfg.Policy == PolicyFresh {
		return m.acquireFresh(ctx)
	}
	return m.acquireShared(ctx)
}

func (m *Manager) acquireShared(ctx context.Context) (*Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	if m.browser == nil || !alive(m.browser) {
		if m.browser != nil {
			m.cfg.Logger.Warn("browser: shared process unresponsive, relaunching")
			m.cleanupLocked()
		}
		b, l, err := launch(&m.cfg)
		if err != nil {
			return nil, err
		}
		m.browser = b
		m.lnch = l
	}

	tab, err := newTab(ctx, m.browser, &m.cfg)
	if err != nil {
		return nil, err
	}
	tab.release = func() {
		m.mu.Lock()
		m.open--
		m.mu.Unlock()
	}
	m.open++
	return tab, nil
}

func (m *Manager) acquireFresh(ctx context.Context) (*Tab, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser: manager is closed")
	}
	m.mu.Unlock()

	b, l, err := launch(&m.cfg)
	if err != nil {
		return nil, err
	}

	tab, err := newTab(ctx, b, &m.cfg)
	if err != nil {
		b.Close()
		if l != nil {
			l.Cleanup()
		}
		return nil, err
	}
	tab.release = func() {
		b.Close()
		if l != nil {
			l.Cleanup()
		}
		m.mu.Lock()
		m.open--
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.open++
	m.mu.Unlock()
	return tab, nil
}

// OpenTabs reports the number of tabs currently acquired and not released.
func (m *Manager) OpenTabs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Close shuts down the shared process, if any. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.cleanupLocked()
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

// alive probes the browser connection with a cheap CDP call.
func alive(b *rod.Browser) bool {
	_, err := proto.BrowserGetVersion{}.Call(b)
	return err == nil
}

func launch(cfg *Config) (*rod.Browser, *launcher.Launcher, error) {
	log := cfg.Logger

	var wsURL string
	var l *launcher.Launcher

	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l = launcher.New().
			Headless(*cfg.Headless).
			NoSandbox(true).
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrLaunch, err)
		}
		wsURL = u
		log.Info("browser: launched local chrome", "url", wsURL, "headless", *cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Cleanup()
		}
		return nil, nil, fmt.Errorf("%w: connect: %v", ErrLaunch, err)
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	return b, l, nil
}
