// Package yuque reads documents from a Yuque-style wiki repository over
// its JSON API, using a browser-like session. It adapts raw payloads into
// the normalized document record; no wire field names leak past it.
package yuque

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mdmigrate/internal/config"
	"mdmigrate/internal/logger"
	"mdmigrate/internal/models"
	"mdmigrate/internal/throttle"
)

// Client errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrAccessDenied         = errors.New("cannot access repository, check session cookie")
	ErrEmptyTOC             = errors.New("repository table of contents is empty")
)

// sessionCookieName is the cookie the wiki platform authenticates with.
const sessionCookieName = "_yuque_session"

// TOCEntry is one document listed in the repository table of contents.
type TOCEntry struct {
	Slug  string
	Title string
}

// Client talks to the wiki API with retry and a shared rate limiter.
type Client struct {
	baseURL    string
	repo       string
	cookie     string
	httpClient *http.Client
	retry      config.RetryPolicy
	limiter    *throttle.Limiter
	log        *logger.Logger
}

// NewClient creates a client for one repository. The limiter is shared
// with the image fetcher so all traffic counts against one ceiling.
func NewClient(src config.SourceConfig, retry config.RetryPolicy, limiter *throttle.Limiter, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(src.BaseURL, "/"),
		repo:       src.Repo,
		cookie:     src.SessionCookie,
		httpClient: &http.Client{Timeout: retry.GetTimeout()},
		retry:      retry,
		limiter:    limiter,
		log:        log,
	}
}

// wire format

type tocResponse struct {
	Data []tocItem `json:"data"`
}

type tocItem struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type docResponse struct {
	Data docPayload `json:"data"`
}

type docPayload struct {
	ID        int      `json:"id"`
	Slug      string   `json:"slug"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
}

// ValidateAccess checks that the repository is reachable with the
// configured session before a run starts.
func (c *Client) ValidateAccess(ctx context.Context) error {
	if _, err := c.TOC(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}

	return nil
}

// TOC fetches the repository table of contents: the ordered listing of
// documents to migrate. Entries without a slug (group headers) are skipped.
func (c *Client) TOC(ctx context.Context) ([]TOCEntry, error) {
	endpoint := fmt.Sprintf("/api/v2/repos/%s/toc", c.repo)

	var resp tocResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch toc: %w", err)
	}

	var entries []TOCEntry

	for _, item := range resp.Data {
		if item.Slug == "" {
			continue
		}

		entries = append(entries, TOCEntry{Slug: item.Slug, Title: item.Title})
	}

	if len(entries) == 0 {
		return nil, ErrEmptyTOC
	}

	return entries, nil
}

// Doc fetches a single document by slug and adapts it to the normalized
// record.
func (c *Client) Doc(ctx context.Context, slug string) (*models.Document, error) {
	endpoint := fmt.Sprintf("/api/v2/repos/%s/docs/%s", c.repo, slug)

	var resp docResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch doc %s: %w", slug, err)
	}

	return adaptDocument(&resp.Data), nil
}

// adaptDocument maps the wire payload into the normalized record.
func adaptDocument(p *docPayload) *models.Document {
	doc := &models.Document{
		SourceID:  strconv.Itoa(p.ID),
		Slug:      p.Slug,
		Title:     p.Title,
		Body:      p.Body,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Tags:      p.Tags,
	}

	if p.Category != "" {
		doc.Categories = []string{p.Category}
	}

	return doc
}

// getJSON performs a rate-limited GET with retry and decodes the response.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if delay := c.retry.GetRetryDelay(attempt); delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.getOnce(ctx, endpoint, out)
		if err == nil {
			return nil
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, c.retry.MaxAttempts, err)

		if !isRetryable(err) {
			break
		}
	}

	return lastErr
}

func (c *Client) getOnce(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// setHeaders mimics a browser session; the platform rejects bare clients.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", c.baseURL+"/"+c.repo)

	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.cookie})
	}
}

// statusError carries the HTTP status for retry classification.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", ErrUnexpectedStatusCode, e.code)
}

func (e *statusError) Unwrap() error {
	return ErrUnexpectedStatusCode
}

// isRetryable reports whether the error is worth another attempt: network
// failures always, HTTP errors only for temporary status codes.
func isRetryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}

	switch se.code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}
