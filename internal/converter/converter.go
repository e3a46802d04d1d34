// Package converter turns WordPress HTML bodies into Markdown and cleans
// up table formatting in converted or imported Markdown.
package converter

import (
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// Converter wraps the HTML→Markdown conversion with GitHub-flavored
// extensions (tables, strikethrough, task lists).
type Converter struct {
	conv *md.Converter
}

// New creates a converter with GitHub-flavored Markdown output.
func New() *Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())

	return &Converter{conv: conv}
}

// HTMLToMarkdown converts an HTML fragment to Markdown and reflows any
// tables, since converted tables come out with ragged column widths.
func (c *Converter) HTMLToMarkdown(htmlBody string) (string, error) {
	markdown, err := c.conv.ConvertString(htmlBody)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	return FormatTables(markdown), nil
}
