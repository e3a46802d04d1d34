// Package report accumulates per-document migration outcomes and writes
// the machine-readable and human-readable run reports.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mdmigrate/internal/models"
	"mdmigrate/pkg/textutil"
)

// Report filenames written by Flush.
const (
	JSONFilename    = "migration_report.json"
	SummaryFilename = "migration_report.md"
)

// Success records one successfully migrated document.
type Success struct {
	Title  string             `json:"title"`
	Source string             `json:"source,omitempty"`
	Target string             `json:"target"`
	Images *models.ImageStats `json:"images"`
}

// Failure records one document that could not be migrated.
type Failure struct {
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error"`
}

// imageTotals aggregates image outcomes across the run.
type imageTotals struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Expired int `json:"expired"`
}

// stats aggregates document outcomes across the run.
type stats struct {
	Total   int         `json:"total"`
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Images  imageTotals `json:"images"`
}

// payload is the serialized report shape.
type payload struct {
	Successes []Success `json:"success"`
	Failures  []Failure `json:"failed"`
	Stats     stats     `json:"stats"`
}

// Report is the append-only run ledger. Appends are mutex-guarded so
// document workers can record outcomes concurrently; exactly one entry
// exists per document attempted.
type Report struct {
	mu   sync.Mutex
	data payload
}

// New creates an empty report.
func New() *Report {
	return &Report{}
}

// SetTotal records how many documents the run will attempt.
func (r *Report) SetTotal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.Stats.Total = n
}

// AddSuccess appends a success entry and folds its image stats into the
// running totals.
func (r *Report) AddSuccess(title, source, target string, images *models.ImageStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.Successes = append(r.data.Successes, Success{
		Title:  title,
		Source: source,
		Target: target,
		Images: images,
	})

	r.data.Stats.Success++
	r.data.Stats.Images.Total += images.Total()
	r.data.Stats.Images.Success += len(images.Succeeded)
	r.data.Stats.Images.Failed += len(images.Failed)
	r.data.Stats.Images.Expired += len(images.Expired)
}

// maxErrorLength caps recorded error strings; a retried fetch error can
// carry several wrapped attempts.
const maxErrorLength = 500

// AddFailure appends a failure entry.
func (r *Report) AddFailure(title, source string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.Failures = append(r.data.Failures, Failure{
		Title:  title,
		Source: source,
		Error:  textutil.Truncate(err.Error(), maxErrorLength),
	})

	r.data.Stats.Failed++
}

// Counts returns (documents total, succeeded, failed).
func (r *Report) Counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.data.Stats.Total, r.data.Stats.Success, r.data.Stats.Failed
}

// ImageCounts returns (images total, succeeded, failed, expired).
func (r *Report) ImageCounts() (int, int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img := r.data.Stats.Images

	return img.Total, img.Success, img.Failed, img.Expired
}

// EntryCount returns the number of ledger entries recorded so far.
func (r *Report) EntryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.data.Successes) + len(r.data.Failures)
}

// Flush serializes the full ledger as JSON plus a human-readable summary
// into dir. Called once at the end of a run.
func (r *Report) Flush(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(&r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, JSONFilename), data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	summary := r.renderSummary()
	if err := os.WriteFile(filepath.Join(dir, SummaryFilename), []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	return nil
}

// renderSummary builds the Markdown summary. Caller holds the lock.
func (r *Report) renderSummary() string {
	var sb strings.Builder

	sb.WriteString("# Migration report\n\n## Totals\n\n")
	sb.WriteString(fmt.Sprintf("- documents: %d\n", r.data.Stats.Total))
	sb.WriteString(fmt.Sprintf("- succeeded: %d\n", r.data.Stats.Success))
	sb.WriteString(fmt.Sprintf("- failed: %d\n", r.data.Stats.Failed))
	sb.WriteString(fmt.Sprintf("- images: %d\n", r.data.Stats.Images.Total))
	sb.WriteString(fmt.Sprintf("- images succeeded: %d\n", r.data.Stats.Images.Success))
	sb.WriteString(fmt.Sprintf("- images failed: %d\n", r.data.Stats.Images.Failed))
	sb.WriteString(fmt.Sprintf("- images expired: %d\n", r.data.Stats.Images.Expired))

	sb.WriteString("\n## Failures\n\n")

	if len(r.data.Failures) == 0 {
		sb.WriteString("none\n")
	}

	for _, f := range r.data.Failures {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", f.Title, f.Error))
	}

	return sb.String()
}
