package notices

import (
	"strings"
	"sync"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

var contentPolicy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
})

// renderContent turns raw post HTML into sanitized markdown for storage.
// The sanitizer runs first so scripts and trackers from the notice body
// never reach the converter.
func renderContent(rawHTML string) string {
	clean := contentPolicy().Sanitize(rawHTML)
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(md)
}
