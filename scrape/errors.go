package scrape

import "errors"

var (
	// ErrSession means no browser session could be opened at all.
	ErrSession = errors.New("scrape: session unavailable")
	// ErrExhausted means every navigation attempt ran out before any
	// usable content appeared.
	ErrExhausted = errors.New("scrape: attempts exhausted")
	// ErrClosed is returned once the scraper has been shut down.
	ErrClosed = errors.New("scrape: scraper closed")
)
