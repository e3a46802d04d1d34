// Package writer persists converted documents into the category-mapped
// output tree and generates the index page.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mdmigrate/internal/config"
	"mdmigrate/internal/frontmatter"
	"mdmigrate/internal/models"
	"mdmigrate/pkg/textutil"
)

// filenameDateLayout prefixes filenames so they sort chronologically.
const filenameDateLayout = "20060102"

// indexSize is how many documents the index page lists.
const indexSize = 10

// Writer computes destination paths and writes document files.
type Writer struct {
	output config.OutputConfig
}

// New creates a writer for the configured output tree.
func New(output config.OutputConfig) *Writer {
	return &Writer{output: output}
}

// TargetPath returns the destination for a document: the primary category
// picks the subdirectory (default fallback for unmapped categories), and
// the filename combines the creation date with the document slug.
func (w *Writer) TargetPath(doc *models.Document) string {
	category := ""
	if len(doc.Categories) > 0 {
		category = doc.Categories[0]
	}

	subdir := w.output.SubdirFor(category)
	date := frontmatter.ParseDate(doc.CreatedAt).Format(filenameDateLayout)
	filename := fmt.Sprintf("%s-%s.md", date, doc.AssetSlug())

	return filepath.Join(w.output.Dir, subdir, filename)
}

// Write persists the rendered document, creating parent directories as
// needed, and returns the path written.
func (w *Writer) Write(doc *models.Document, content string) (string, error) {
	target := w.TargetPath(doc)

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	return target, nil
}

// WriteIndex generates an index page listing the most recently updated
// documents, sorted newest first.
func (w *Writer) WriteIndex(docs []*models.Document) error {
	type indexEntry struct {
		doc     *models.Document
		updated time.Time
	}

	// Parse once per document; ParseDate falls back to now() for malformed
	// input, and a per-comparison parse would make the ordering unstable.
	entries := make([]indexEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, indexEntry{doc: doc, updated: frontmatter.ParseDate(doc.UpdatedAt)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].updated.After(entries[j].updated)
	})

	if len(entries) > indexSize {
		entries = entries[:indexSize]
	}

	var sb strings.Builder

	sb.WriteString("# Index\n\n## Recently updated\n\n")

	for _, entry := range entries {
		date := entry.updated.Format(frontmatter.DateLayout)
		sb.WriteString(fmt.Sprintf("- [%s](%s) - %s\n", textutil.CleanTitle(entry.doc.Title), entry.doc.AssetSlug(), date))
	}

	if err := os.MkdirAll(w.output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	target := filepath.Join(w.output.Dir, "index.md")
	if err := os.WriteFile(target, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	return nil
}
