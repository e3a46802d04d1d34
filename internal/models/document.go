// Package models defines the normalized records shared across the migration pipeline.
package models

import "fmt"

// Document is the normalized form of one source record, regardless of
// whether it came from the wiki API or a WordPress export. Source adapters
// produce it; nothing downstream sees source-specific field names.
type Document struct {
	SourceID   string
	Title      string
	Slug       string
	Body       string
	CreatedAt  string
	UpdatedAt  string
	Categories []string
	Tags       []string
}

// AssetSlug returns the namespace used for this document's downloaded
// images. Falls back to the source ID when the document has no slug.
func (d *Document) AssetSlug() string {
	if d.Slug != "" {
		return d.Slug
	}

	return fmt.Sprintf("post-%s", d.SourceID)
}

// ImageReference tracks one distinct image URL found in a document body
// and, once resolved, the local path it was rewritten to. A failed fetch
// leaves LocalPath equal to SourceURL, signaling non-substitution.
type ImageReference struct {
	SourceURL string
	LocalPath string
	Resolved  bool
}

// Failed reports whether the reference resolved without a usable local path.
func (r *ImageReference) Failed() bool {
	return r.Resolved && r.LocalPath == r.SourceURL
}

// ImageStats summarizes image handling for a single document. Expired
// holds URLs replaced with the placeholder under the dead-domain policy.
type ImageStats struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
	Expired   []string `json:"expired,omitempty"`
}

// Total returns the number of distinct image URLs processed.
func (s *ImageStats) Total() int {
	return len(s.Succeeded) + len(s.Failed) + len(s.Expired)
}
