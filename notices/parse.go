package notices

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// listItem is one row scraped off a notice board before it becomes a
// stored Notice.
type listItem struct {
	title       string
	dateText    string
	href        string
	contentHTML string
}

// parseList extracts notice rows from a channel posts page. Markup differs
// across site revisions, so candidates run from the specific to the
// generic: class-tagged post items, then articles, then any list item that
// links somewhere.
func parseList(doc, baseURL string) []listItem {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil
	}

	var nodes []*html.Node
	for _, pick := range []func(*html.Node) bool{
		func(n *html.Node) bool { return n.Data == "li" && classContains(n, "Post_") },
		func(n *html.Node) bool { return n.Data == "article" },
		func(n *html.Node) bool { return n.Data == "li" && firstNode(n, isAnchor) != nil },
	} {
		nodes = collect(root, pick)
		if len(nodes) > 0 {
			break
		}
	}

	base, _ := url.Parse(baseURL)

	var out []listItem
	for _, n := range nodes {
		item := listItem{
			href:     resolveHref(base, firstNode(n, isAnchor)),
			title:    itemTitle(n),
			dateText: itemDate(n),
		}
		if content := firstNode(n, func(c *html.Node) bool { return classContains(c, "content") }); content != nil {
			item.contentHTML = innerHTML(content)
		}
		if item.title == "" || item.href == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// parseStationName pulls the streamer's display name off a station page,
// preferring the og:title meta over the document title. Site-branding
// suffixes after a separator are stripped.
func parseStationName(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}

	if m := firstNode(root, func(n *html.Node) bool {
		return n.Data == "meta" && attrVal(n, "property") == "og:title"
	}); m != nil {
		if name := cleanStationName(attrVal(m, "content")); name != "" {
			return name
		}
	}
	if t := firstNode(root, func(n *html.Node) bool { return n.Data == "title" }); t != nil {
		return cleanStationName(textOf(t))
	}
	return ""
}

func cleanStationName(s string) string {
	for _, sep := range []string{" | ", " - ", "의 방송국"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return collapse(s)
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func itemTitle(n *html.Node) string {
	if t := firstNode(n, func(c *html.Node) bool { return classContains(c, "title") }); t != nil {
		return collapse(textOf(t))
	}
	if a := firstNode(n, isAnchor); a != nil {
		return collapse(textOf(a))
	}
	return ""
}

func itemDate(n *html.Node) string {
	var found string
	walk(n, func(c *html.Node) bool {
		if c.Type != html.TextNode {
			return true
		}
		s := strings.TrimSpace(c.Data)
		if s == "" {
			return true
		}
		if dateLike(s) {
			found = s
			return false
		}
		return true
	})
	return found
}

func dateLike(s string) bool {
	if strings.Contains(s, "방금") || strings.Contains(s, "어제") {
		return true
	}
	return minutesAgo.MatchString(s) || hoursAgo.MatchString(s) ||
		daysAgo.MatchString(s) || absoluteYMD.MatchString(s)
}

func resolveHref(base *url.URL, a *html.Node) string {
	if a == nil {
		return ""
	}
	for _, at := range a.Attr {
		if at.Key != "href" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(at.Val))
		if err != nil || ref.String() == "" {
			return ""
		}
		if base != nil {
			return base.ResolveReference(ref).String()
		}
		return ref.String()
	}
	return ""
}

func isAnchor(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "a"
}

func classContains(n *html.Node, substr string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(strings.ToLower(a.Val), strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

// walk visits n and its descendants until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func collect(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func firstNode(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n != root && n.Type == html.ElementNode && pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
		return true
	})
	return b.String()
}

func innerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
