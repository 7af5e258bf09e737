package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lukemcguire/wordcrawl/urlutil"
)

// hiddenElements never contribute visible text.
var hiddenElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Svg:      true,
}

// blockElements start and end a line of visible text.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true, atom.Tr: true,
	atom.Ul: true,
}

// ExtractPage parses an HTML document and returns the visible text of its
// body and the href of every anchor, resolved against baseURL.
//
// Text approximates a browser's innerText: inline runs are joined as written,
// block elements break lines, and whitespace inside a line is collapsed.
// Links keep fragments and non-HTTP schemes; filtering is left to the link policy.
func ExtractPage(body io.Reader, baseURL *url.URL) (text string, links []string, err error) {
	doc, err := html.Parse(body)
	if err != nil {
		return "", nil, fmt.Errorf("parse html: %w", err)
	}

	var raw strings.Builder
	var walk func(n *html.Node, inBody bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.A {
				if link, ok := anchorHref(n, baseURL); ok {
					links = append(links, link)
				}
			}
			if hiddenElements[n.DataAtom] {
				// Anchors inside hidden elements are still links on the page.
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c, false)
				}
				return
			}
			if n.DataAtom == atom.Body {
				inBody = true
			}
			if inBody && blockElements[n.DataAtom] {
				raw.WriteByte('\n')
			}
		}

		if inBody && n.Type == html.TextNode {
			// Source line breaks are whitespace, not visible line breaks.
			raw.WriteString(strings.Map(spaceOut, n.Data))
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}

		if inBody && n.Type == html.ElementNode && blockElements[n.DataAtom] {
			raw.WriteByte('\n')
		}
	}
	walk(doc, false)

	return collapseWhitespace(raw.String()), links, nil
}

// anchorHref returns the resolved href of an <a> element.
// An empty href points at the page itself.
func anchorHref(n *html.Node, baseURL *url.URL) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key != "href" {
			continue
		}
		if strings.TrimSpace(attr.Val) == "" {
			return baseURL.String(), true
		}
		resolved, err := urlutil.ResolveReference(baseURL, attr.Val)
		if err != nil {
			return "", false
		}
		return resolved, true
	}
	return "", false
}

func spaceOut(r rune) rune {
	switch r {
	case '\n', '\r', '\t', '\f':
		return ' '
	}
	return r
}

// collapseWhitespace trims every line, collapses inner whitespace runs to
// one space and drops empty lines.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}
