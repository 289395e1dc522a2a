// Package htmlclean reduces a rendered page to the markup a model needs to
// pick selectors: body only, no scripts or styling, no tracking attributes.
package htmlclean

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const truncatedMarker = "\n<!-- truncated -->"

type Config struct {
	TagsToRemove  []string
	AttrsToRemove []string
	// AttrPrefixesToRemove drops every attribute starting with one of them.
	AttrPrefixesToRemove []string
	MaxOutputSize        int
	CustomAttrFilter     func(attr html.Attribute) bool
}

var DefaultConfig = Config{
	TagsToRemove: []string{
		"script", "style", "noscript", "svg", "iframe",
		"link", "meta", "head", "title", "template",
	},
	AttrsToRemove: []string{
		"style", "srcset", "sizes", "loading", "decoding", "fetchpriority", "tabindex",
	},
	AttrPrefixesToRemove: []string{"data-", "aria-", "on"},
	MaxOutputSize:        130_000,
}

// Clean applies DefaultConfig with the given size cap.
func Clean(rawHTML string, maxLen int) (string, error) {
	cfg := DefaultConfig
	if maxLen > 0 {
		cfg.MaxOutputSize = maxLen
	}
	return CleanWith(rawHTML, cfg)
}

func CleanWith(rawHTML string, cfg Config) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	body := findBody(doc)
	if body == nil {
		return "", errors.New("document has no body")
	}

	cleanNode(body, cfg)

	var sb strings.Builder
	if err := html.Render(&sb, body); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return truncate(sb.String(), cfg.MaxOutputSize), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func cleanNode(n *html.Node, cfg Config) {
	switch n.Type {
	case html.CommentNode:
		remove(n)
		return
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			remove(n)
		}
		return
	case html.ElementNode:
	default:
		return
	}

	if isOneOf(n.Data, cfg.TagsToRemove...) {
		remove(n)
		return
	}

	n.Attr = filterAttributes(n.Attr, cfg)

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		cleanNode(c, cfg)
		c = next
	}
}

func remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func filterAttributes(attrs []html.Attribute, cfg Config) []html.Attribute {
	kept := attrs[:0]
	for _, attr := range attrs {
		if !shouldRemoveAttr(attr, cfg) {
			kept = append(kept, attr)
		}
	}
	return kept
}

func shouldRemoveAttr(attr html.Attribute, cfg Config) bool {
	if isOneOf(attr.Key, cfg.AttrsToRemove...) {
		return true
	}
	for _, prefix := range cfg.AttrPrefixesToRemove {
		if strings.HasPrefix(attr.Key, prefix) {
			return true
		}
	}
	return cfg.CustomAttrFilter != nil && cfg.CustomAttrFilter(attr)
}

func truncate(s string, maxSize int) string {
	if maxSize <= 0 || len(s) <= maxSize {
		return s
	}
	for maxSize > 0 && !utf8.RuneStart(s[maxSize]) {
		maxSize--
	}
	return s[:maxSize] + truncatedMarker
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
