// Package main provides the WordPress import command: it reads a WXR
// export file, converts published posts from HTML to Markdown, localizes
// images, and writes the posts into the category-mapped output tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"mdmigrate/internal/config"
	"mdmigrate/internal/converter"
	"mdmigrate/internal/logger"
	"mdmigrate/internal/migrator"
	"mdmigrate/internal/models"
	"mdmigrate/internal/report"
	"mdmigrate/internal/source/wordpress"
	"mdmigrate/internal/throttle"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the migration config file")
	xmlPath := flag.String("xml", "", "Path to the WordPress WXR export file")
	listCategories := flag.Bool("list-categories", false, "Print the export's categories and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	if *xmlPath == "" {
		log.Error("please provide the export file with -xml")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(cfg, *xmlPath, *listCategories, log); err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, xmlPath string, listCategories bool, log *logger.Logger) error {
	startTime := time.Now()

	export, err := wordpress.ParseFile(xmlPath)
	if err != nil {
		return err
	}

	if listCategories {
		for _, cat := range export.Categories() {
			fmt.Printf("%s\t%s\n", cat.Slug, cat.Name)
		}

		return nil
	}

	posts := export.Posts()
	log.Info("parsed export", "site", export.SiteTitle(), "posts", len(posts))

	rep := report.New()
	rep.SetTotal(len(posts))

	limiter := throttle.New(cfg.RateLimit)
	pipeline := migrator.New(cfg, limiter, rep, log)
	conv := converter.New()

	// Convert bodies up front so the pipeline only ever sees Markdown.
	var docs []*models.Document

	for _, post := range posts {
		markdown, err := conv.HTMLToMarkdown(post.Body)
		if err != nil {
			log.Warn("failed to convert post", "title", post.Title, "error", err)
			rep.AddFailure(post.Title, post.SourceID, err)

			continue
		}

		post.Body = markdown
		docs = append(docs, post)
	}

	if err := pipeline.Run(context.Background(), docs); err != nil {
		return err
	}

	if err := pipeline.WriteIndex(docs); err != nil {
		return err
	}

	if err := rep.Flush(cfg.Output.Dir); err != nil {
		return err
	}

	printSummary(rep, time.Since(startTime))

	return nil
}

func printSummary(rep *report.Report, elapsed time.Duration) {
	total, succeeded, failed := rep.Counts()
	imgTotal, imgOK, imgFailed, imgExpired := rep.ImageCounts()

	fmt.Println("\n------------------------------------------------")
	fmt.Println("Import summary")
	fmt.Println("------------------------------------------------")
	fmt.Printf("Posts:  %d (succeeded %d, failed %d)\n", total, succeeded, failed)
	fmt.Printf("Images: %d (succeeded %d, failed %d, expired %d)\n", imgTotal, imgOK, imgFailed, imgExpired)
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("------------------------------------------------")
}
