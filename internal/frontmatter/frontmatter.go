// Package frontmatter synthesizes and parses the YAML metadata block that
// prefixes every generated Markdown document.
package frontmatter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mdmigrate/internal/models"
	"mdmigrate/pkg/textutil"
)

// ErrNoFrontMatter is returned when a document has no front matter block.
var ErrNoFrontMatter = errors.New("no front matter block found")

// DateLayout is the date format used in generated front matter.
const DateLayout = "2006-01-02"

// blockRegex matches a leading ----delimited YAML block.
var blockRegex = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n?`)

// sourceLayouts are the timestamp formats the source systems emit.
var sourceLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// StringList unmarshals from either a YAML scalar or a sequence, so a
// source that wrote `tags: solo-tag` still parses as a one-element list.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}

		*l = StringList{s}

		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}

		*l = StringList(items)

		return nil
	default:
		return fmt.Errorf("cannot unmarshal YAML node kind %d into string list", value.Kind)
	}
}

// Meta is the front matter of one generated document.
type Meta struct {
	Title      string     `yaml:"title"`
	Date       string     `yaml:"date"`
	Updated    string     `yaml:"updated,omitempty"`
	Categories StringList `yaml:"categories,omitempty"`
	Tags       StringList `yaml:"tags,omitempty"`
}

// ParseDate parses a source timestamp on a best-effort basis, falling back
// to the current time when no known layout matches.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)

	for _, layout := range sourceLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	return time.Now()
}

// Synthesize builds the front matter for a normalized document. The
// updated field is emitted only when it differs from the creation date.
func Synthesize(doc *models.Document) *Meta {
	created := ParseDate(doc.CreatedAt).Format(DateLayout)

	meta := &Meta{
		Title:      textutil.CleanTitle(doc.Title),
		Date:       created,
		Categories: StringList(doc.Categories),
		Tags:       StringList(doc.Tags),
	}

	if doc.UpdatedAt != "" {
		updated := ParseDate(doc.UpdatedAt).Format(DateLayout)
		if updated != created {
			meta.Updated = updated
		}
	}

	return meta
}

// Render serializes the metadata block followed by a blank line and body.
func Render(meta *Meta, body string) (string, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}

	var sb strings.Builder

	sb.WriteString("---\n")
	sb.Write(data)
	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimLeft(body, "\n"))

	return sb.String(), nil
}

// Parse splits a Markdown document into its metadata and body.
func Parse(content string) (*Meta, string, error) {
	match := blockRegex.FindStringSubmatch(content)
	if match == nil {
		return nil, content, ErrNoFrontMatter
	}

	var meta Meta
	if err := yaml.Unmarshal([]byte(match[1]), &meta); err != nil {
		return nil, content, fmt.Errorf("failed to parse front matter: %w", err)
	}

	body := content[len(match[0]):]

	return &meta, body, nil
}
