// Package formatter reflows webhook replies so Markdown headings and list
// items start on their own line.
package formatter

import "strings"

type rule struct {
	marker string
	prefix string
}

// Applied in this order. Matching is literal: a "1. " in the middle of a
// sentence is broken too.
var rules = []rule{
	{"## ", "\n\n"},
	{"- ", "\n"},
	{"1. ", "\n"},
	{"2. ", "\n"},
	{"3. ", "\n"},
	{"4. ", "\n"},
}

// Format inserts line breaks before every heading, bullet and ordered-list
// marker. A marker already preceded by its break is left alone, so running
// Format on its own output changes nothing.
func Format(text string) string {
	for _, r := range rules {
		text = insertBefore(text, r.marker, r.prefix)
	}
	return text
}

func insertBefore(text, marker, prefix string) string {
	if !strings.Contains(text, marker) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(prefix)*strings.Count(text, marker))

	rest := text
	for {
		i := strings.Index(rest, marker)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		if !strings.HasSuffix(b.String(), prefix) {
			b.WriteString(prefix)
		}
		b.WriteString(marker)
		rest = rest[i+len(marker):]
	}

	return b.String()
}
