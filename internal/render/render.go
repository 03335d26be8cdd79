// Package render turns copilot replies into terminal-ready Markdown.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Options configures the markdown renderer.
type Options struct {
	// Width is the wrap column (default: 80)
	Width int

	// Style is a glamour standard style: "dark", "light", "notty"...
	Style string
}

func DefaultOptions() Options {
	return Options{Width: 80, Style: "dark"}
}

// Markdown renders content for a terminal. Replies are already broken
// into lines by the formatter, so newlines are preserved as written.
func Markdown(content string, opts Options) (string, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultOptions().Width
	}
	if opts.Style == "" {
		opts.Style = DefaultOptions().Style
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(opts.Style),
		glamour.WithWordWrap(opts.Width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return "", err
	}

	out, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
