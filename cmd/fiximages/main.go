// Package main provides the fiximages command, which rewrites absolute
// asset paths in an existing output tree to depth-relative ones and swaps
// expired image references for the placeholder.
package main

import (
	"flag"
	"fmt"
	"os"

	"mdmigrate/internal/fixup"
	"mdmigrate/internal/logger"
)

func main() {
	root := flag.String("root", "docs/blog/posts", "Directory of Markdown files to rewrite")
	upLevels := flag.Int("up-levels", 2, "Directories between the root and the asset tree's parent")
	expiredMarker := flag.String("expired-marker", "expired", "Substring marking expired asset paths")
	placeholder := flag.String("placeholder", "assets/images/placeholder.png", "Placeholder path relative to the asset tree's parent")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log := logger.New(*level)

	if _, err := os.Stat(*root); err != nil {
		log.Error("cannot access root directory", "root", *root, "error", err)
		os.Exit(1)
	}

	opts := &fixup.Options{
		Root:           *root,
		UpLevels:       *upLevels,
		ExpiredMarker:  *expiredMarker,
		PlaceholderRel: *placeholder,
	}

	changed, err := fixup.ProcessTree(opts, log)
	if err != nil {
		log.Error("fixup failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Updated %d files under %s\n", changed, *root)
}
