package render

import (
	"strings"

	"golang.org/x/net/html"
)

// skipTags are elements whose text is never shown
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
}

// PlainText flattens an HTML fragment into a single line of text
func PlainText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Truncate shortens s to at most limit runes for one-line display
func Truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:max(limit, 0)])
	}
	return string(r[:limit-3]) + "..."
}
