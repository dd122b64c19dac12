// Package booktext provides a read-only view over the reader's book markup
// used to re-align subtitle lines with the source text.
package booktext

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// BaseLineClass prefixes the css class carried by every highlighted book line.
const BaseLineClass = "ttu-whispersync-line-highlight-"

// ignoredParents are annotation containers whose text is not part of the line.
var ignoredParents = map[string]struct{}{
	"rt": {},
	"rp": {},
}

// Tree is a parsed book fragment queryable by subtitle line id.
type Tree struct {
	root *html.Node
}

// Parse builds a Tree from the book's element markup.
func Parse(markup string) (*Tree, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse book markup: %w", err)
	}
	if root.FirstChild == nil {
		return nil, fmt.Errorf("failed to parse book markup: empty document")
	}

	return &Tree{root: root}, nil
}

// TextForLine concatenates the trimmed text of every span carrying the line's
// highlight class, skipping spans nested in annotation elements. The second
// return reports whether any matching span was found.
func (t *Tree) TextForLine(id string) (string, bool) {
	class := BaseLineClass + id

	var builder strings.Builder
	found := false

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "span" && hasClass(n, class) {
			found = true

			if !insideIgnoredParent(n) {
				builder.WriteString(strings.TrimSpace(nodeText(n)))
			}
			return
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(t.root)

	return builder.String(), found
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}

		for _, candidate := range strings.Fields(attr.Val) {
			if candidate == class {
				return true
			}
		}
	}

	return false
}

func insideIgnoredParent(n *html.Node) bool {
	parent := n.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return false
	}

	_, ignored := ignoredParents[strings.ToLower(parent.Data)]
	return ignored
}

func nodeText(n *html.Node) string {
	var builder strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
			return
		}

		if n.Type == html.ElementNode {
			if _, ignored := ignoredParents[strings.ToLower(n.Data)]; ignored {
				return
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)

	return builder.String()
}
