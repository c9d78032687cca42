package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/negcheck/internal/metrics"
	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/util"
	"github.com/ppiankov/negcheck/internal/worker"
)

var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrNonHTMLResource   = errors.New("URL points to a non-HTML resource")
	ErrDisallowed        = errors.New("disallowed by robots.txt")
	ErrNotHTML           = errors.New("response is not HTML")
	ErrTooLarge          = errors.New("response body exceeds size limit")

	errTooManyRedirects = errors.New("too many redirects")
)

// StatusError is returned for HTTP responses with status >= 400
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// skippedExtensions are path extensions never fetched
var skippedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".zip": true, ".rar": true, ".7z": true, ".gz": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
	".mp3": true, ".mp4": true, ".wav": true, ".avi": true, ".mov": true,
}

// fetchSleepFunc is the backoff sleep; tests replace it
var fetchSleepFunc = time.Sleep

// Fetcher downloads a page and reduces it to visible text
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
}

// NewFetcher creates a new Fetcher from the HTTP config. limiter may be nil.
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter) *Fetcher {
	defaults := model.DefaultConfig().HTTP
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaults.MaxRedirects
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		maxRetries: cfg.MaxRetries,
		limiter:    limiter,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent, cfg.Timeout)
	}
	return f
}

// Page is a fetched and reduced HTML page
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Text        string // Visible text, one block element per line
}

// Fetch returns the visible text of the page, or "" on any failure.
// It never returns an error and never panics.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (text string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fetch panicked", "url", rawURL, "panic", r)
			metrics.FetchTotal.WithLabelValues("error").Inc()
			text = ""
		}
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	page, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		reason := fetchReason(err)
		metrics.FetchTotal.WithLabelValues(reason).Inc()
		slog.Debug("fetch failed", "url", rawURL, "reason", reason, "error", err)
		return ""
	}

	metrics.FetchTotal.WithLabelValues("ok").Inc()
	slog.Debug("fetched page", "url", rawURL, "final_url", page.FinalURL, "chars", len(page.Text))
	return page.Text
}

// FetchWithRetry fetches a page, retrying transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*Page, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(1<<(attempt-1)) * 500 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		page, err := f.Get(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			break
		}
	}
	return nil, lastErr
}

// Get performs a single fetch attempt
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := checkURL(rawURL)
	if err != nil {
		return nil, err
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, u.String())
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, ErrDisallowed
		}
		f.limiter.SetCrawlDelay(u.String(), delay)
	}

	if err := f.limiter.Wait(ctx, u.String()); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrNotHTML, contentType)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, ErrTooLarge
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, ErrTooLarge
	}

	text, err := ExtractText(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Text:        text,
	}, nil
}

// checkURL rejects URLs that are not worth a request
func checkURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	if skippedExtensions[strings.ToLower(path.Ext(u.Path))] {
		return nil, ErrNonHTMLResource
	}
	return u, nil
}

func isHTMLContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// isRetryableFetchError reports whether another attempt might succeed.
// 429 and 5xx responses and connection failures are retried; timeouts,
// cancellation and content problems are not.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errTooManyRedirects) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// fetchReason is the metrics label for a failed fetch
func fetchReason(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, ErrNonHTMLResource), errors.Is(err, ErrUnsupportedScheme), errors.Is(err, ErrInvalidURL):
		return "skipped"
	case errors.Is(err, ErrDisallowed):
		return "robots"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, ErrNotHTML):
		return "content_type"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	default:
		return "error"
	}
}
