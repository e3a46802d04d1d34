package yuque

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"mdmigrate/internal/config"
	"mdmigrate/internal/logger"
	"mdmigrate/internal/throttle"
)

func testClient(serverURL string) *Client {
	src := config.SourceConfig{
		BaseURL:       serverURL,
		Repo:          "team/notes",
		SessionCookie: "session-token",
	}

	retry := config.RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMs:    1,
		MaxDelayMs:        2,
		BackoffMultiplier: 2.0,
		TimeoutSec:        5,
	}

	limiter := throttle.New(config.RateLimitConfig{RequestsPerMinute: 600000})
	log := logger.NewWithWriter("error", io.Discard)

	return NewClient(src, retry, limiter, log)
}

func TestTOC(t *testing.T) {
	var gotCookie atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/repos/team/notes/toc" {
			http.NotFound(w, r)

			return
		}

		if c, err := r.Cookie(sessionCookieName); err == nil {
			gotCookie.Store(c.Value)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[
			{"type":"TITLE","title":"Group header","slug":""},
			{"type":"DOC","title":"Hello","slug":"hello"},
			{"type":"DOC","title":"World","slug":"world"}
		]}`)
	}))
	defer server.Close()

	client := testClient(server.URL)

	entries, err := client.TOC(context.Background())
	if err != nil {
		t.Fatalf("TOC() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("TOC() returned %d entries, want 2 (header skipped)", len(entries))
	}

	if entries[0].Slug != "hello" || entries[1].Slug != "world" {
		t.Errorf("entries = %+v", entries)
	}

	if gotCookie.Load() != "session-token" {
		t.Errorf("session cookie not sent, got %v", gotCookie.Load())
	}
}

func TestDoc_AdaptsPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/repos/team/notes/docs/hello" {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{
			"id": 7,
			"slug": "hello",
			"title": "Hello",
			"body": "# Hello\n\n![pic](https://cdn.example.com/a.png)",
			"created_at": "2020-03-01T12:30:00.000Z",
			"updated_at": "2021-01-05T08:00:00.000Z",
			"category": "Tech",
			"tags": ["go"]
		}}`)
	}))
	defer server.Close()

	client := testClient(server.URL)

	doc, err := client.Doc(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Doc() error = %v", err)
	}

	if doc.SourceID != "7" {
		t.Errorf("SourceID = %q, want 7", doc.SourceID)
	}

	if doc.Slug != "hello" || doc.Title != "Hello" {
		t.Errorf("doc = %+v", doc)
	}

	if len(doc.Categories) != 1 || doc.Categories[0] != "Tech" {
		t.Errorf("Categories = %v, want [Tech]", doc.Categories)
	}

	if len(doc.Tags) != 1 || doc.Tags[0] != "go" {
		t.Errorf("Tags = %v, want [go]", doc.Tags)
	}
}

func TestGetJSON_RetriesTransientErrors(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		io.WriteString(w, `{"data":[{"type":"DOC","title":"Hello","slug":"hello"}]}`)
	}))
	defer server.Close()

	client := testClient(server.URL)

	if _, err := client.TOC(context.Background()); err != nil {
		t.Fatalf("TOC() error = %v", err)
	}

	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestGetJSON_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := testClient(server.URL)

	_, err := client.TOC(context.Background())
	if err == nil {
		t.Fatal("TOC() expected error")
	}

	if !errors.Is(err, ErrUnexpectedStatusCode) {
		t.Errorf("error = %v, want ErrUnexpectedStatusCode", err)
	}

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1 (no retry on 403)", hits.Load())
	}
}

func TestValidateAccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(server.URL)

	err := client.ValidateAccess(context.Background())
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("ValidateAccess() = %v, want ErrAccessDenied", err)
	}
}
