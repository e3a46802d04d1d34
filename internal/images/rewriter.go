package images

import (
	"net/url"
	"regexp"
	"strings"

	"mdmigrate/internal/config"
	"mdmigrate/internal/models"
)

// expiredMarker is appended after a placeholder substitution so the swap
// stays visible in the written Markdown.
const expiredMarker = " <!-- image expired, replaced with placeholder -->"

// Rewriter substitutes resolved image URLs in document bodies and applies
// the dead-domain policy: URLs on a known-expired hosting domain always
// become the placeholder image, regardless of fetch outcome. URLs whose
// fetch failed keep the original external URL so they stay visible for
// manual review, and are reported as failures.
type Rewriter struct {
	expiredDomains  []string
	placeholderPath string
}

// NewRewriter creates a rewriter from the image policy configuration.
func NewRewriter(cfg config.ImagesConfig) *Rewriter {
	return &Rewriter{
		expiredDomains:  cfg.ExpiredDomains,
		placeholderPath: cfg.PlaceholderPath,
	}
}

// IsExpired reports whether the URL belongs to a known-expired hosting
// domain. Subdomains of a configured domain count as expired.
func (r *Rewriter) IsExpired(srcURL string) bool {
	parsed, err := url.Parse(srcURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())

	for _, domain := range r.expiredDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	return false
}

// Rewrite substitutes every resolved URL in the body and returns the new
// body plus per-document stats. Expired-domain references are replaced
// with the placeholder and an inline marker comment.
func (r *Rewriter) Rewrite(body string, refs []*models.ImageReference) (string, *models.ImageStats) {
	stats := &models.ImageStats{}

	for _, ref := range refs {
		switch {
		case r.IsExpired(ref.SourceURL):
			body = r.substitutePlaceholder(body, ref.SourceURL)
			stats.Expired = append(stats.Expired, ref.SourceURL)
		case ref.Failed():
			stats.Failed = append(stats.Failed, ref.SourceURL)
		default:
			body = strings.ReplaceAll(body, ref.SourceURL, ref.LocalPath)
			stats.Succeeded = append(stats.Succeeded, ref.SourceURL)
		}
	}

	return body, stats
}

// substitutePlaceholder rewrites every image reference to srcURL as the
// placeholder image. Markdown references gain a trailing marker comment;
// any remaining occurrences get a plain path substitution.
func (r *Rewriter) substitutePlaceholder(body, srcURL string) string {
	pattern := regexp.MustCompile(`(!\[[^\]]*\]\()` + regexp.QuoteMeta(srcURL) + `(\))`)

	// The marker must not quote the source URL or the trailing ReplaceAll
	// would rewrite it inside the comment as well.
	body = pattern.ReplaceAllString(body, "${1}"+r.placeholderPath+"${2}"+expiredMarker)

	return strings.ReplaceAll(body, srcURL, r.placeholderPath)
}
