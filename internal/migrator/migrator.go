// Package migrator orchestrates the per-document pipeline: image
// extraction and download, body rewriting, front matter synthesis, and
// the final write, with every outcome recorded in the run report.
package migrator

import (
	"context"
	"sync"

	"mdmigrate/internal/config"
	"mdmigrate/internal/converter"
	"mdmigrate/internal/frontmatter"
	"mdmigrate/internal/images"
	"mdmigrate/internal/logger"
	"mdmigrate/internal/models"
	"mdmigrate/internal/report"
	"mdmigrate/internal/throttle"
	"mdmigrate/internal/writer"
	"mdmigrate/pkg/textutil"
)

// Pipeline processes normalized documents into the output tree.
type Pipeline struct {
	cfg      *config.Config
	fetcher  *images.Fetcher
	rewriter *images.Rewriter
	writer   *writer.Writer
	report   *report.Report
	log      *logger.Logger
}

// New wires a pipeline from configuration. The limiter is shared with any
// source client so all remote traffic counts against one ceiling.
func New(cfg *config.Config, limiter *throttle.Limiter, rep *report.Report, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		fetcher:  images.NewFetcher(cfg.Retry, limiter, cfg.Output.AssetsDir, publicPrefix(cfg), log),
		rewriter: images.NewRewriter(cfg.Images),
		writer:   writer.New(cfg.Output),
		report:   rep,
		log:      log,
	}
}

// publicPrefix derives the path prefix substituted into document bodies
// from the placeholder path's directory, matching the site's URL layout.
func publicPrefix(cfg *config.Config) string {
	p := cfg.Images.PlaceholderPath
	if i := lastSlash(p); i > 0 {
		return p[:i]
	}

	return "/assets/images"
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}

	return -1
}

// assignSlugs resolves slug collisions across the batch before workers
// start: a document whose slug is already taken gets a date-prefixed slug
// derived from its title, so two documents never target the same file.
func assignSlugs(docs []*models.Document) {
	seen := make(map[string]bool)

	for _, doc := range docs {
		if seen[doc.AssetSlug()] {
			date := frontmatter.ParseDate(doc.CreatedAt).Format(frontmatter.DateLayout)
			doc.Slug = textutil.UniqueSlug(doc.Title, date, seen)
		}

		seen[doc.AssetSlug()] = true
	}
}

// Run processes documents with a bounded worker pool. Image and document
// failures are recorded and skipped; filesystem errors cancel the pool
// and abort the run, since they indicate an environment problem.
func (p *Pipeline) Run(ctx context.Context, docs []*models.Document) error {
	assignSlugs(docs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *models.Document)

	var (
		wg       sync.WaitGroup
		fatalMu  sync.Mutex
		fatalErr error
	)

	setFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		cancel()
	}

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for doc := range jobs {
				if ctx.Err() != nil {
					return
				}

				if err := p.Process(ctx, doc); err != nil {
					setFatal(err)

					return
				}
			}
		}()
	}

	for _, doc := range docs {
		select {
		case jobs <- doc:
		case <-ctx.Done():
		}

		if ctx.Err() != nil {
			break
		}
	}

	close(jobs)
	wg.Wait()

	fatalMu.Lock()
	defer fatalMu.Unlock()

	return fatalErr
}

// Process migrates a single document and records its outcome. The
// returned error is non-nil only for filesystem failures; everything else
// becomes a report entry.
func (p *Pipeline) Process(ctx context.Context, doc *models.Document) error {
	slug := doc.AssetSlug()
	log := p.log.With("slug", slug)

	urls := images.ExtractImageURLs(doc.Body)
	refs := make([]*models.ImageReference, 0, len(urls))

	for _, srcURL := range urls {
		if p.rewriter.IsExpired(srcURL) {
			// Dead-domain policy applies regardless of fetch outcome, so
			// skip the pointless download.
			refs = append(refs, &models.ImageReference{SourceURL: srcURL})

			continue
		}

		ref, err := p.fetcher.Fetch(ctx, srcURL, slug)
		if err != nil {
			// Asset persistence failures are filesystem errors, fatal for
			// the whole run like a failed document write.
			p.report.AddFailure(doc.Title, doc.SourceID, err)

			return err
		}

		refs = append(refs, ref)
	}

	body, stats := p.rewriter.Rewrite(doc.Body, refs)
	body = converter.FormatTables(body)

	content, err := frontmatter.Render(frontmatter.Synthesize(doc), body)
	if err != nil {
		p.report.AddFailure(doc.Title, doc.SourceID, err)
		log.Error("failed to render document", "error", err)

		return nil
	}

	target, err := p.writer.Write(doc, content)
	if err != nil {
		// Filesystem errors are fatal for the whole run.
		p.report.AddFailure(doc.Title, doc.SourceID, err)

		return err
	}

	p.report.AddSuccess(doc.Title, doc.SourceID, target, stats)
	log.Info("migrated document",
		"target", target,
		"images", stats.Total(),
		"failed_images", len(stats.Failed))

	return nil
}

// WriteIndex generates the index page over the successfully processed
// documents when the configuration asks for one.
func (p *Pipeline) WriteIndex(docs []*models.Document) error {
	if !p.cfg.Output.IndexPage {
		return nil
	}

	return p.writer.WriteIndex(docs)
}
