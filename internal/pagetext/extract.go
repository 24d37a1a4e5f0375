// Package pagetext turns page HTML into bounded plain text and digests it
// for drift verdicts.
package pagetext

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxText bounds extracted page text.
const MaxText = 4000

var hiddenStyle = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden`)

// Page is the readable part of an HTML document.
type Page struct {
	Title string
	Text  string
}

// Extract parses HTML and returns its title and visible text, whitespace
// collapsed and truncated to MaxText runes.
func Extract(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, err
	}

	var sb strings.Builder
	collect(doc, &sb)
	return Page{
		Title: findTitle(doc),
		Text:  clip(collapse(sb.String()), MaxText),
	}, nil
}

// ExtractString is Extract for an in-memory document.
func ExtractString(s string) (Page, error) {
	return Extract(strings.NewReader(s))
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func collect(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head, atom.Svg:
			return
		}
		if hidden(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, sb)
	}
}

func hidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "style":
			if hiddenStyle.MatchString(a.Val) {
				return true
			}
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
