package navigate

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	// minVisibleText is the rendered-text floor below which a document is
	// treated as an unhydrated shell.
	minVisibleText = 200
	// shellTextCeiling is how little text an app mount point may hold and
	// still count as empty.
	shellTextCeiling = 40
)

// appMountIDs are container ids that client-side frameworks hydrate into.
// An empty one is the strongest signal the server response is a shell.
var appMountIDs = map[string]bool{
	"root":   true,
	"__next": true,
	"app":    true,
}

// Sufficient reports whether an HTML document carries enough rendered
// content for attribute and label extraction to be worth attempting. A false
// result means the page is still a client-side shell and needs more
// settle time or a reload.
func Sufficient(doc string) bool {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return false
	}

	total := visibleTextLen(root)
	if total < minVisibleText {
		return false
	}

	// A page can clear the text floor on header chrome alone while the app
	// container is still empty. Check mount points explicitly.
	if n := findMount(root); n != nil && visibleTextLen(n) < shellTextCeiling {
		return false
	}

	return true
}

func visibleTextLen(n *html.Node) int {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return 0
		}
	}
	total := 0
	if n.Type == html.TextNode {
		total += len(strings.TrimSpace(n.Data))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		total += visibleTextLen(c)
	}
	return total
}

func findMount(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && appMountIDs[a.Val] {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findMount(c); m != nil {
			return m
		}
	}
	return nil
}
