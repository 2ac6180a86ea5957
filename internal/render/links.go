package render

import (
	"html"
	"regexp"
	"strings"
)

// Segment is a run of display text, linked when Href is set.
type Segment struct {
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

var (
	anchorPattern = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]*>`)
	linkPattern   = regexp.MustCompile(`(?i)\b(?:https?://[^\s<>"']+|www\.[^\s<>"']+|[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*\.(?:com|net|org|io|info|biz|app|dev|kz|ru|uk|de|eu|co)\b(?:/[^\s<>"']*)?)`)
)

const trailingPunct = ".,;:!?)]}'\""

// Linkify splits text into plain and linked segments. Anchors already in the
// text become linked segments as they are; bare URLs and domains elsewhere
// are linked. The input is scanned once, so nothing is wrapped twice.
func Linkify(text string) []Segment {
	var out []Segment
	last := 0
	for _, m := range anchorPattern.FindAllStringSubmatchIndex(text, -1) {
		out = appendLinks(out, text[last:m[0]])
		href := html.UnescapeString(text[m[2]:m[3]])
		inner := html.UnescapeString(tagPattern.ReplaceAllString(text[m[4]:m[5]], ""))
		if inner == "" {
			inner = href
		}
		out = append(out, Segment{Text: inner, Href: href})
		last = m[1]
	}
	return appendLinks(out, text[last:])
}

func appendLinks(out []Segment, text string) []Segment {
	last := 0
	for _, m := range linkPattern.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		end = start + len(strings.TrimRight(text[start:end], trailingPunct))
		if end <= start || (start > 0 && text[start-1] == '@') {
			continue
		}
		if start > last {
			out = appendText(out, text[last:start])
		}
		link := text[start:end]
		out = append(out, Segment{Text: link, Href: normalizeURL(link)})
		last = end
	}
	if last < len(text) {
		out = appendText(out, text[last:])
	}
	return out
}

func appendText(out []Segment, s string) []Segment {
	if n := len(out); n > 0 && out[n-1].Href == "" {
		out[n-1].Text += s
		return out
	}
	return append(out, Segment{Text: s})
}

func normalizeURL(s string) string {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s
	}
	return "https://" + s
}

// PlainText joins segments back into text.
func PlainText(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}
