package images

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"mdmigrate/internal/config"
	"mdmigrate/internal/logger"
	"mdmigrate/internal/throttle"
)

func testRetryPolicy() config.RetryPolicy {
	return config.RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMs:    1,
		MaxDelayMs:        2,
		BackoffMultiplier: 2.0,
		TimeoutSec:        5,
	}
}

func testLimiter() *throttle.Limiter {
	return throttle.New(config.RateLimitConfig{RequestsPerMinute: 600000})
}

func newTestFetcher(t *testing.T) (*Fetcher, string) {
	t.Helper()
	assetsRoot := t.TempDir()

	log := logger.NewWithWriter("error", io.Discard)
	f := NewFetcher(testRetryPolicy(), testLimiter(), assetsRoot, "/assets/images", log)

	return f, assetsRoot
}

func TestFetch_Success(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	f, assetsRoot := newTestFetcher(t)

	ref, err := f.Fetch(context.Background(), server.URL+"/photo.png", "my-post")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if ref.Failed() {
		t.Fatalf("Fetch() failed: local path = %s", ref.LocalPath)
	}

	if !strings.HasPrefix(ref.LocalPath, "/assets/images/my-post/") {
		t.Errorf("LocalPath = %q, want /assets/images/my-post/ prefix", ref.LocalPath)
	}

	if !strings.HasSuffix(ref.LocalPath, ".png") {
		t.Errorf("LocalPath = %q, want .png extension", ref.LocalPath)
	}

	filename := filepath.Base(ref.LocalPath)

	data, err := os.ReadFile(filepath.Join(assetsRoot, "my-post", filename))
	if err != nil {
		t.Fatalf("asset file not written: %v", err)
	}

	if string(data) != "png-bytes" {
		t.Errorf("asset content = %q, want png-bytes", data)
	}

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestFetch_MemoizedSingleNetworkCall(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("x"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	url := server.URL + "/img.png"

	first, _ := f.Fetch(context.Background(), url, "post-a")
	second, _ := f.Fetch(context.Background(), url, "post-a")

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1 (memoized)", hits.Load())
	}

	if first.LocalPath != second.LocalPath {
		t.Errorf("local paths differ: %q vs %q", first.LocalPath, second.LocalPath)
	}
}

func TestFetch_404RetriesThenFails(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	url := server.URL + "/gone.png"

	ref, err := f.Fetch(context.Background(), url, "post-a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !ref.Failed() {
		t.Fatalf("Fetch() = %+v, want failure", ref)
	}

	if ref.LocalPath != url {
		t.Errorf("LocalPath = %q, want original URL on failure", ref.LocalPath)
	}

	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3 (max attempts)", hits.Load())
	}

	// Failure is memoized too.
	f.Fetch(context.Background(), url, "post-a")

	if hits.Load() != 3 {
		t.Errorf("server hits after re-fetch = %d, want 3", hits.Load())
	}
}

func TestFetch_RecoversAfterTransientError(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)

	ref, err := f.Fetch(context.Background(), server.URL+"/flaky.png", "post-a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if ref.Failed() {
		t.Fatalf("Fetch() failed after retries: %+v", ref)
	}

	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestFetch_ExtensionFromContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		w.Write([]byte("jpg"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)

	ref, _ := f.Fetch(context.Background(), server.URL+"/download", "post-a")
	if !strings.HasSuffix(ref.LocalPath, ".jpg") {
		t.Errorf("LocalPath = %q, want .jpg from content type", ref.LocalPath)
	}
}

func TestFetch_IdenticalBasenamesDoNotCollide(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)

	a, _ := f.Fetch(context.Background(), server.URL+"/one/pic.png", "post-a")
	b, _ := f.Fetch(context.Background(), server.URL+"/two/pic.png", "post-a")

	if a.LocalPath == b.LocalPath {
		t.Errorf("local paths collide: %q", a.LocalPath)
	}
}

func TestFetch_EntityEscapedURLDecodedOnWire(t *testing.T) {
	var gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("x"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)

	// The URL as written in the body, entity escape included.
	srcURL := server.URL + "/pic.png?w=640&amp;h=480"

	ref, err := f.Fetch(context.Background(), srcURL, "post-a")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if ref.Failed() {
		t.Fatalf("Fetch() failed: %+v", ref)
	}

	if gotQuery != "w=640&h=480" {
		t.Errorf("request query = %q, want w=640&h=480", gotQuery)
	}

	if ref.SourceURL != srcURL {
		t.Errorf("SourceURL = %q, want the URL as written", ref.SourceURL)
	}
}

func TestFetch_FilesystemErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("x"))
	}))
	defer server.Close()

	// An assets root that is a regular file makes MkdirAll fail.
	assetsRoot := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(assetsRoot, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	log := logger.NewWithWriter("error", io.Discard)
	f := NewFetcher(testRetryPolicy(), testLimiter(), assetsRoot, "/assets/images", log)

	if _, err := f.Fetch(context.Background(), server.URL+"/a.png", "post-a"); err == nil {
		t.Fatal("Fetch() expected error for unwritable assets root")
	}
}

func TestDeriveExt(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		want        string
	}{
		{"url extension wins", "https://x.example/a.gif", "image/png", ".gif"},
		{"jpeg normalized", "https://x.example/a.jpeg", "", ".jpg"},
		{"content type fallback", "https://x.example/a", "image/webp", ".webp"},
		{"query string ignored", "https://x.example/a.png?h=300", "", ".png"},
		{"default png", "https://x.example/a", "text/html", ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveExt(tt.url, tt.contentType); got != tt.want {
				t.Errorf("deriveExt(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
			}
		})
	}
}
