package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mdmigrate/internal/config"
	"mdmigrate/internal/logger"
	"mdmigrate/internal/models"
	"mdmigrate/internal/throttle"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// maxImageBytes caps how much of a response body is read.
const maxImageBytes = 32 << 20

// hashLength is the number of hex characters used for asset filenames.
const hashLength = 12

// contentTypeExts maps declared image content types to file extensions.
var contentTypeExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// knownExts are extensions accepted straight from the URL path.
var knownExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".bmp": true, ".ico": true,
}

// Fetcher downloads referenced images with bounded retry and memoizes the
// outcome per URL, so each distinct URL costs at most one download per run.
type Fetcher struct {
	client       *http.Client
	retry        config.RetryPolicy
	limiter      *throttle.Limiter
	assetsRoot   string
	publicPrefix string
	log          *logger.Logger

	mu      sync.Mutex
	entries map[string]*fetchEntry
}

// fetchEntry guards a single URL so two workers never download it
// concurrently; the first caller resolves it, later callers reuse it.
type fetchEntry struct {
	once sync.Once
	ref  *models.ImageReference
	err  error
}

// NewFetcher creates an image fetcher. assetsRoot is the directory images
// are written under; publicPrefix is the path prefix substituted into
// document bodies. The limiter may be shared with the source client.
func NewFetcher(retry config.RetryPolicy, limiter *throttle.Limiter, assetsRoot, publicPrefix string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:       &http.Client{Timeout: retry.GetTimeout()},
		retry:        retry,
		limiter:      limiter,
		assetsRoot:   assetsRoot,
		publicPrefix: strings.TrimRight(publicPrefix, "/"),
		log:          log,
		entries:      make(map[string]*fetchEntry),
	}
}

// Fetch resolves one image URL for the named document. The result is
// memoized for the remainder of the run, success or failure. A failed
// fetch returns a reference whose local path equals the source URL; the
// error is non-nil only when the asset could not be persisted, which the
// caller should treat as fatal.
func (f *Fetcher) Fetch(ctx context.Context, srcURL, slug string) (*models.ImageReference, error) {
	f.mu.Lock()

	entry, ok := f.entries[srcURL]
	if !ok {
		entry = &fetchEntry{}
		f.entries[srcURL] = entry
	}

	f.mu.Unlock()

	entry.once.Do(func() {
		entry.ref, entry.err = f.download(ctx, srcURL, slug)
	})

	return entry.ref, entry.err
}

// download performs the actual retrying fetch and writes the asset file.
// Network failures produce a failed reference; filesystem failures are
// returned as errors since they indicate an environment problem, not a
// dead image.
func (f *Fetcher) download(ctx context.Context, srcURL, slug string) (*models.ImageReference, error) {
	failed := &models.ImageReference{SourceURL: srcURL, LocalPath: srcURL, Resolved: true}

	// The URL is keyed and substituted as written in the body, but entity
	// escapes must be decoded before going on the wire.
	data, contentType, err := f.fetchBytes(ctx, html.UnescapeString(srcURL))
	if err != nil {
		f.log.Warn("image download failed", "url", srcURL, "error", err)

		return failed, nil
	}

	filename := hashFilename(srcURL) + deriveExt(srcURL, contentType)

	dir := filepath.Join(f.assetsRoot, slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return failed, fmt.Errorf("failed to create asset directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return failed, fmt.Errorf("failed to write asset file: %w", err)
	}

	return &models.ImageReference{
		SourceURL: srcURL,
		LocalPath: fmt.Sprintf("%s/%s/%s", f.publicPrefix, slug, filename),
		Resolved:  true,
	}, nil
}

// fetchBytes retrieves the resource with retry and backoff, returning the
// body and the declared content type.
func (f *Fetcher) fetchBytes(ctx context.Context, srcURL string) ([]byte, string, error) {
	var lastErr error

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if delay := f.retry.GetRetryDelay(attempt); delay > 0 {
				select {
				case <-ctx.Done():
					return nil, "", ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		data, contentType, err := f.fetchOnce(ctx, srcURL)
		if err == nil {
			return data, contentType, nil
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, f.retry.MaxAttempts, err)
	}

	return nil, "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, srcURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// browserUserAgent avoids image CDNs that reject non-browser clients.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// hashFilename derives a short deterministic filename stem from the URL,
// sidestepping collisions between identical basenames and path-unsafe
// characters in source filenames.
func hashFilename(srcURL string) string {
	sum := sha256.Sum256([]byte(srcURL))

	return hex.EncodeToString(sum[:])[:hashLength]
}

// deriveExt picks the asset file extension: URL path extension when it is
// a known image type, else the declared content type, else .png.
func deriveExt(srcURL, contentType string) string {
	if parsed, err := url.Parse(srcURL); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); knownExts[ext] {
			if ext == ".jpeg" {
				return ".jpg"
			}

			return ext
		}
	}

	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}

	if ext, ok := contentTypeExts[strings.TrimSpace(strings.ToLower(mediaType))]; ok {
		return ext
	}

	return ".png"
}
