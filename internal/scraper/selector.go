package scraper

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector locates one region of a page and the items inside it. It is
// written as "tag.class item": the first tag element whose class list
// contains class is the region, and every item element below it is
// extracted.
type Selector struct {
	Tag   string
	Class string
	Item  string
}

// ParseSelector parses a "tag.class item" expression.
func ParseSelector(expr string) (Selector, error) {
	fields := strings.Fields(expr)
	if len(fields) != 2 {
		return Selector{}, fmt.Errorf("selector %q: want \"tag.class item\"", expr)
	}
	tag, class, ok := strings.Cut(fields[0], ".")
	if !ok || tag == "" || class == "" {
		return Selector{}, fmt.Errorf("selector %q: region must be tag.class", expr)
	}
	return Selector{
		Tag:   strings.ToLower(tag),
		Class: class,
		Item:  strings.ToLower(fields[1]),
	}, nil
}

func (s Selector) String() string {
	return s.Tag + "." + s.Class + " " + s.Item
}

// Extract returns the trimmed text of every item in the first matching
// region of doc, in document order. A missing region yields nil.
func (s Selector) Extract(doc *html.Node) []string {
	region := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == s.Tag && hasClass(n, s.Class)
	})
	if region == nil {
		return nil
	}

	var items []string
	for c := region.FirstChild; c != nil; c = c.NextSibling {
		collect(c, s.Item, &items)
	}
	return items
}

func collect(n *html.Node, item string, out *[]string) {
	if n.Type == html.ElementNode && n.Data == item {
		*out = append(*out, strings.TrimSpace(textContent(n)))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, item, out)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
