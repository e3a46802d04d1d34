// Package images implements the image migration pipeline: reference
// extraction, rate-limited download, and body rewriting.
package images

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mdImagePattern matches Markdown image syntax and captures the URL.
var mdImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

// htmlSrcPattern captures img src attribute values as written in the
// source, entity escapes included, so substitution stays literal.
var htmlSrcPattern = regexp.MustCompile(`<img[^>]*\ssrc=(?:"([^"]*)"|'([^']*)')`)

// ExtractImageURLs returns the distinct image source URLs referenced in a
// document body, in first-seen order. Both Markdown image syntax and HTML
// img tags are recognized; inline data URIs are excluded. URLs are keyed
// by exact string match, no normalization.
func ExtractImageURLs(body string) []string {
	var urls []string

	seen := make(map[string]bool)

	add := func(url string) {
		url = strings.TrimSpace(url)
		if url == "" || strings.HasPrefix(url, "data:") {
			return
		}

		// The rewriter substitutes literal occurrences; an entity-decoded
		// src that never appears verbatim in the body is unrewritable.
		if seen[url] || !strings.Contains(body, url) {
			return
		}

		seen[url] = true
		urls = append(urls, url)
	}

	for _, match := range mdImagePattern.FindAllStringSubmatch(body, -1) {
		add(match[1])
	}

	// Raw attribute text first: an entity-escaped src (&amp; in a query
	// string) must be keyed as written or the literal rewrite misses it.
	for _, match := range htmlSrcPattern.FindAllStringSubmatch(body, -1) {
		if match[1] != "" {
			add(match[1])
		} else {
			add(match[2])
		}
	}

	for _, src := range extractHTMLImageSrcs(body) {
		add(src)
	}

	return urls
}

// extractHTMLImageSrcs collects src attributes from img tags. The body is
// treated as an HTML fragment; Markdown text passes through the parser as
// plain text so mixed documents are fine.
func extractHTMLImageSrcs(body string) []string {
	if !strings.Contains(body, "<img") {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var srcs []string

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			srcs = append(srcs, src)
		}
	})

	return srcs
}
