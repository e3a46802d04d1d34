// Package main provides the wiki-repository migration command: it walks
// the repository table of contents, converts every document to Markdown
// with front matter, localizes images, and writes the run report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mdmigrate/internal/config"
	"mdmigrate/internal/logger"
	"mdmigrate/internal/migrator"
	"mdmigrate/internal/models"
	"mdmigrate/internal/report"
	"mdmigrate/internal/source/yuque"
	"mdmigrate/internal/throttle"
)

// sessionEnvVar supplies the session cookie when the config omits it.
const sessionEnvVar = "WIKI_SESSION"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the migration config file")
	envPath := flag.String("env", "", "Optional .env file with credentials")
	flag.Parse()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
			os.Exit(1)
		}
	} else {
		// Best effort: a .env beside the binary is optional.
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Source.SessionCookie == "" {
		cfg.Source.SessionCookie = os.Getenv(sessionEnvVar)
	}

	log := logger.New(cfg.Logging.Level)

	if err := cfg.ValidateSource(); err != nil {
		log.Error("invalid source configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()
	startTime := time.Now()

	log.Info("starting migration", "repo", cfg.Source.Repo, "output", cfg.Output.Dir)

	limiter := throttle.New(cfg.RateLimit)
	client := yuque.NewClient(cfg.Source, cfg.Retry, limiter, log)

	if err := client.ValidateAccess(ctx); err != nil {
		return err
	}

	toc, err := client.TOC(ctx)
	if err != nil {
		return err
	}

	log.Info("fetched table of contents", "documents", len(toc))

	rep := report.New()
	rep.SetTotal(len(toc))

	pipeline := migrator.New(cfg, limiter, rep, log)

	// Fetch failures become report entries; the batch keeps going.
	var docs []*models.Document

	for _, entry := range toc {
		doc, err := client.Doc(ctx, entry.Slug)
		if err != nil {
			log.Warn("failed to fetch document", "slug", entry.Slug, "error", err)
			rep.AddFailure(entry.Title, entry.Slug, err)

			continue
		}

		docs = append(docs, doc)
	}

	if err := pipeline.Run(ctx, docs); err != nil {
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
	fmt.Println("Migration summary")
	fmt.Println("------------------------------------------------")
	fmt.Printf("Documents: %d (succeeded %d, failed %d)\n", total, succeeded, failed)
	fmt.Printf("Images:    %d (succeeded %d, failed %d, expired %d)\n", imgTotal, imgOK, imgFailed, imgExpired)
	fmt.Printf("Duration:  %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("------------------------------------------------")
}
