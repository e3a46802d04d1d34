// Package fixup repairs image references in an already-generated output
// tree: absolute asset paths become depth-relative ones, and references
// to expired images are swapped for the placeholder.
package fixup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"mdmigrate/internal/logger"
)

// Options control one fixup pass.
type Options struct {
	// Root is the directory of Markdown files to rewrite.
	Root string
	// UpLevels is how many directories above Root the asset tree lives.
	UpLevels int
	// ExpiredMarker flags asset paths that point at expired images.
	ExpiredMarker string
	// PlaceholderRel is the placeholder image path relative to the asset
	// tree's parent directory.
	PlaceholderRel string
}

var (
	mdAssetPattern   = regexp.MustCompile(`!\[([^\]]*)\]\((/assets/[^)]*)\)`)
	htmlAssetPattern = regexp.MustCompile(`<img[^>]*src="(/assets/[^"]*)"[^>]*/?>`)
)

// RewriteContent converts absolute /assets/ references in content to
// relative ones. prefix is the ../ run that climbs from the file's
// directory to the asset tree's parent.
func RewriteContent(content, prefix string, opts *Options) string {
	if opts.ExpiredMarker != "" {
		expiredPattern := regexp.MustCompile(
			`!\[([^\]]*)\]\(/assets/[^)]*` + regexp.QuoteMeta(opts.ExpiredMarker) + `[^)]*\)`)
		content = expiredPattern.ReplaceAllString(content, "![${1}]("+prefix+opts.PlaceholderRel+")")
	}

	content = mdAssetPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := mdAssetPattern.FindStringSubmatch(match)

		return fmt.Sprintf("![%s](%s%s)", groups[1], prefix, strings.TrimPrefix(groups[2], "/"))
	})

	content = htmlAssetPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := htmlAssetPattern.FindStringSubmatch(match)

		return fmt.Sprintf(`<img src="%s%s" alt="image" />`, prefix, strings.TrimPrefix(groups[1], "/"))
	})

	return content
}

// RelativePrefix computes the ../ run for a file at the given depth below
// the root, plus the configured climb from root to the asset parent.
func RelativePrefix(depth, upLevels int) string {
	return strings.Repeat("../", depth+upLevels)
}

// ProcessFile rewrites one Markdown file in place. Returns whether the
// file changed.
func ProcessFile(path string, depth int, opts *Options) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	content := string(data)

	rewritten := RewriteContent(content, RelativePrefix(depth, opts.UpLevels), opts)
	if rewritten == content {
		return false, nil
	}

	if err := os.WriteFile(path, []byte(rewritten), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return true, nil
}

// ProcessTree walks the root and rewrites every Markdown file, returning
// how many files changed.
func ProcessTree(opts *Options, log *logger.Logger) (int, error) {
	changed := 0

	err := filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		rel, err := filepath.Rel(opts.Root, path)
		if err != nil {
			return err
		}

		depth := len(strings.Split(filepath.ToSlash(rel), "/")) - 1

		didChange, err := ProcessFile(path, depth, opts)
		if err != nil {
			return err
		}

		if didChange {
			changed++

			log.Info("updated file", "path", path)
		}

		return nil
	})
	if err != nil {
		return changed, fmt.Errorf("fixup walk failed: %w", err)
	}

	return changed, nil
}
