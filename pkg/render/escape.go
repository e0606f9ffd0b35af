package render

import "strings"

// escapeHTML escapes text for safe inclusion in HTML content and attribute
// values. The entity set matches golang.org/x/net/html so that rendered
// trees and host-built documents serialize identically.
func escapeHTML(s string) string {
	if !strings.ContainsAny(s, "&'<>\"\r") {
		return s
	}
	var buf strings.Builder
	buf.Grow(len(s) + 8)

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&#34;")
		case '\'':
			buf.WriteString("&#39;")
		case '\r':
			buf.WriteString("&#13;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}
