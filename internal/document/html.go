package document

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// WebPageExtractor strips markup from HTML pages, returning the visible text
// joined by single spaces. Non-HTML input degrades gracefully: the tokenizer
// treats it as one text node, so plain text passes through unchanged.
type WebPageExtractor struct{}

// Extract implements Extractor.
func (WebPageExtractor) Extract(data []byte, _ string) (string, error) {
	text, err := HTMLToText(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return text, nil
}

// HTMLToText extracts the visible text content from an HTML document.
// Script and style elements are skipped.
func HTMLToText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return normalizeWhitespace(b.String()), nil
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
