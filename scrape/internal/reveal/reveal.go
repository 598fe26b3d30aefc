// Package reveal performs the small interactions some dashboards require
// before their data exists in the DOM: scrolling lazy sections into view and
// activating tabs that mount content on click.
//
// A reveal is described as a Recipe of candidate targets tried in order.
// Sites change their markup without notice, so a recipe degrades through
// progressively looser candidates instead of pinning one selector.
package reveal

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Candidate describes one way to locate the interaction target.
type Candidate struct {
	// Selector is the CSS selector to search for.
	Selector string
	// Text, when set, filters selector matches to elements whose trimmed
	// text contains it. Lets a candidate survive class renames.
	Text string
}

// Recipe is an ordered interaction plan. The first candidate that resolves
// to an element gets clicked; later candidates are fallbacks.
type Recipe struct {
	Name       string
	Candidates []Candidate
	// PreScroll scrolls the page down before searching, in pixels. Lazy
	// sections often need this to exist at all.
	PreScroll int
	// PostScroll scrolls after the click so newly mounted content loads.
	PostScroll int
	// SettleDelay is the wait after a successful click for the clicked
	// content to render. Default: 1500ms.
	SettleDelay time.Duration
}

func (r *Recipe) defaults() {
	if r.SettleDelay <= 0 {
		r.SettleDelay = 1500 * time.Millisecond
	}
}

// StatsTabRecipe activates the statistics tab on a monitor dashboard. The
// tab is rendered several ways across site revisions; the candidates go
// from the stable data attribute down to a bare text match.
func StatsTabRecipe() Recipe {
	return Recipe{
		Name:      "stats-tab",
		PreScroll: 300,
		Candidates: []Candidate{
			{Selector: `button[data-tab="statistics"]`},
			{Selector: `button`, Text: "통계"},
			{Selector: `[role="tab"]`, Text: "통계"},
			{Selector: `a`, Text: "통계"},
		},
		PostScroll: 400,
	}
}

// Reveal runs the recipe against page. It reports whether a candidate was
// found and clicked; false means no candidate resolved, which callers treat
// as "content may already be visible", not as failure.
func Reveal(ctx context.Context, page *rod.Page, r Recipe) bool {
	r.defaults()
	p := page.Context(ctx)

	if r.PreScroll > 0 {
		scrollBy(p, r.PreScroll)
		sleepCtx(ctx, 300*time.Millisecond)
	}

	el := resolve(p, r.Candidates)
	if el == nil {
		return false
	}

	if err := el.ScrollIntoView(); err == nil {
		sleepCtx(ctx, 200*time.Millisecond)
	}
	// Hover first so the click comes with plausible pointer history.
	_ = el.Hover()

	click(el)
	drift(p, el)
	sleepCtx(ctx, r.SettleDelay)

	if r.PostScroll > 0 {
		scrollBy(p, r.PostScroll)
		sleepCtx(ctx, 300*time.Millisecond)
	}

	return true
}

func resolve(p *rod.Page, candidates []Candidate) *rod.Element {
	for _, c := range candidates {
		els, err := p.Elements(c.Selector)
		if err != nil {
			continue
		}
		for _, el := range els {
			if c.Text == "" {
				return el
			}
			text, err := el.Text()
			if err != nil {
				continue
			}
			if strings.Contains(strings.TrimSpace(text), c.Text) {
				return el
			}
		}
	}
	return nil
}

// clickTarget is the element surface click drives. *rod.Element satisfies
// it; tests substitute a recorder.
type clickTarget interface {
	Eval(js string, params ...interface{}) (*proto.RuntimeRemoteObject, error)
	Click(button proto.InputMouseButton, clickCount int) error
}

// click fires both dispatch paths. Tab bars on these dashboards sit under
// translucent overlays that swallow trusted pointer events, so the DOM
// click bypasses hit testing, while the input-level click satisfies
// handlers that check event.isTrusted. Activating an already-active tab is
// a no-op, so double dispatch is safe.
func click(el clickTarget) {
	_, _ = el.Eval(`() => this.click()`)
	_ = el.Click(proto.InputMouseButtonLeft, 1)
}

// drift moves the pointer off the element after the click, the way a human
// hand leaves a button it just pressed.
func drift(p *rod.Page, el *rod.Element) {
	shape, err := el.Shape()
	if err != nil {
		return
	}
	pt := shape.OnePointInside()
	if pt == nil {
		return
	}
	_ = p.Mouse.MoveLinear(proto.NewPoint(pt.X+90, pt.Y+60), 6)
}

func scrollBy(p *rod.Page, px int) {
	_, _ = p.Eval(`(px) => window.scrollBy({top: px, behavior: "instant"})`, px)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
