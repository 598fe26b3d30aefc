// Package navigate drives a page to a target URL and waits for a bounded
// content-readiness signal instead of full-page idle.
//
// The wait policy is "minimum viable readiness": block until the structural
// DOM is attached (DOMContentLoaded), then poll briefly for a content
// presence marker. A timeout produces a Degraded outcome, never an error, so
// downstream stages can still attempt extraction against the partial DOM.
package navigate

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// State classifies a navigation outcome.
type State int

const (
	// Ready means the DOM attached and the readiness marker was observed.
	Ready State = iota
	// Degraded means the navigation or the marker poll timed out; whatever
	// DOM exists may still be worth extracting from.
	Degraded
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "degraded"
}

// Outcome reports how a navigation ended.
type Outcome struct {
	State   State
	Elapsed time.Duration
	// Err carries the underlying navigation error on Degraded outcomes.
	// Informational only; callers branch on State.
	Err error
}

// Options bound the navigation.
type Options struct {
	// NavigationTimeout is the hard ceiling for the whole navigation.
	// Default: 20s.
	NavigationTimeout time.Duration
	// ReadinessTimeout bounds the marker poll after DOM attach. Default: 5s.
	ReadinessTimeout time.Duration
	// PollInterval between marker checks. Default: 250ms.
	PollInterval time.Duration
	// MarkerText is a substring expected in the rendered page text.
	MarkerText string
	// MarkerSelector is a selector expected to exist once content rendered.
	// Checked before MarkerText when both are set.
	MarkerSelector string
}

func (o *Options) defaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 20 * time.Second
	}
	if o.ReadinessTimeout <= 0 {
		o.ReadinessTimeout = 5 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
}

// Do navigates page to url and waits for readiness. It never returns an
// error: hard failures and timeouts degrade instead.
func Do(ctx context.Context, page *rod.Page, url string, opts Options) Outcome {
	opts.defaults()
	start := time.Now()

	navCtx, cancel := context.WithTimeout(ctx, opts.NavigationTimeout)
	defer cancel()
	p := page.Context(navCtx)

	// Arm the DOMContentLoaded wait before navigating so the event cannot
	// slip between Navigate and WaitEvent.
	domReady := p.WaitEvent(&proto.PageDomContentEventFired{})

	if err := p.Navigate(url); err != nil {
		return Outcome{State: Degraded, Elapsed: time.Since(start), Err: err}
	}
	domReady()
	if navCtx.Err() != nil {
		return Outcome{State: Degraded, Elapsed: time.Since(start), Err: navCtx.Err()}
	}

	if opts.MarkerSelector == "" && opts.MarkerText == "" {
		return Outcome{State: Ready, Elapsed: time.Since(start)}
	}

	pollCtx, cancelPoll := context.WithTimeout(ctx, opts.ReadinessTimeout)
	defer cancelPoll()

	for {
		if markerPresent(pollCtx, page, opts) {
			return Outcome{State: Ready, Elapsed: time.Since(start)}
		}
		select {
		case <-pollCtx.Done():
			return Outcome{State: Degraded, Elapsed: time.Since(start), Err: pollCtx.Err()}
		case <-time.After(opts.PollInterval):
		}
	}
}

func markerPresent(ctx context.Context, page *rod.Page, opts Options) bool {
	p := page.Context(ctx)

	if opts.MarkerSelector != "" {
		if has, _, err := p.Has(opts.MarkerSelector); err == nil && has {
			return true
		}
	}

	if opts.MarkerText != "" {
		res, err := p.Eval(`() => (document.body && document.body.innerText) || ""`)
		if err == nil && strings.Contains(res.Value.Str(), opts.MarkerText) {
			return true
		}
	}

	return false
}
