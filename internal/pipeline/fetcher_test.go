package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/negcheck/internal/model"
)

func testHTTPConfig() model.HTTPConfig {
	cfg := model.DefaultConfig().HTTP
	cfg.Timeout = 5 * time.Second
	cfg.UserAgent = "negcheck-test"
	return cfg
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

const articleHTML = `<html><head><title>ignored</title><style>.x{color:red}</style></head>
<body>
<nav>Home | World | Business</nav>
<script>var tracking = "ACME bribery";</script>
<article>
  <h1>ACME   Corp under scrutiny</h1>
  <p>ACME Corp was investigated for bribery last year.</p>
  <p>Shares fell &amp; analysts &amp;amp; investors worried.</p>
</article>
<footer>Copyright ACME fraud footer</footer>
</body></html>`

func TestFetch_VisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "negcheck-test" {
			t.Errorf("unexpected user agent: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, articleHTML)
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(), nil)
	text := fetcher.Fetch(context.Background(), server.URL+"/story")

	want := "ACME Corp under scrutiny\nACME Corp was investigated for bribery last year.\nShares fell & analysts &amp; investors worried."
	if text != want {
		t.Errorf("unexpected text:\n got: %q\nwant: %q", text, want)
	}
}

func TestFetch_Charset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body><p>Caf\xe9 Holdings fined</p></body></html>"))
	}))
	defer server.Close()

	text := NewFetcher(testHTTPConfig(), nil).Fetch(context.Background(), server.URL)
	if text != "Café Holdings fined" {
		t.Errorf("expected decoded latin-1 text, got %q", text)
	}
}

func TestFetch_FailuresReturnEmpty(t *testing.T) {
	noSleep(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"ACME":"bribe"}`)
	})
	mux.HandleFunc("/untyped", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte("<html><body>ACME</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(), nil)
	for _, p := range []string{"/missing", "/json", "/untyped"} {
		if text := fetcher.Fetch(context.Background(), server.URL+p); text != "" {
			t.Errorf("%s: expected empty text, got %q", p, text)
		}
	}
}

func TestGet_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer server.Close()

	page, err := NewFetcher(testHTTPConfig(), nil).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected empty page, got error %v", err)
	}
	if page.Text != "" {
		t.Errorf("expected no text, got %q", page.Text)
	}
}

func TestGet_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewFetcher(testHTTPConfig(), nil).Get(context.Background(), server.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	if got := err.Error(); got != "unexpected status: 403 Forbidden" {
		t.Errorf("unexpected error text: %s", got)
	}
}

func TestGet_TooLarge(t *testing.T) {
	big := "<html><body><p>" + strings.Repeat("x", 500) + "</p></body></html>"

	mux := http.NewServeMux()
	mux.HandleFunc("/declared", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Length", fmt.Sprint(len(big)))
		_, _ = fmt.Fprint(w, big)
	})
	mux.HandleFunc("/chunked", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.(http.Flusher).Flush()
		_, _ = fmt.Fprint(w, big)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.MaxBodyBytes = 100
	fetcher := NewFetcher(cfg, nil)

	for _, p := range []string{"/declared", "/chunked"} {
		if _, err := fetcher.Get(context.Background(), server.URL+p); !errors.Is(err, ErrTooLarge) {
			t.Errorf("%s: expected ErrTooLarge, got %v", p, err)
		}
	}
}

func TestGet_SkipsWithoutRequest(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		url  string
		want error
	}{
		{server.URL + "/report.PDF", ErrNonHTMLResource},
		{server.URL + "/img/photo.jpg?w=200", ErrNonHTMLResource},
		{server.URL + "/archive.zip", ErrNonHTMLResource},
		{"ftp://example.com/file", ErrUnsupportedScheme},
		{"mailto:someone@example.com", ErrUnsupportedScheme},
		{"http://", ErrInvalidURL},
	}
	for _, tt := range tests {
		if _, err := fetcher.Get(ctx, tt.url); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.url, tt.want, err)
		}
	}

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestGet_RedirectLimit(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n), http.StatusFound)
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.MaxRedirects = 2
	cfg.MaxRetries = 3

	_, err := NewFetcher(cfg, nil).FetchWithRetry(context.Background(), server.URL)
	if !errors.Is(err, errTooManyRedirects) {
		t.Fatalf("expected redirect limit error, got %v", err)
	}
	// The third hop is refused before it is sent and nothing is retried
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}

func TestGet_RobotsDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body><p>open</p></body></html>")
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.RespectRobots = true
	fetcher := NewFetcher(cfg, nil)

	if _, err := fetcher.Get(context.Background(), server.URL+"/private/story"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
	if page, err := fetcher.Get(context.Background(), server.URL+"/public"); err != nil || page.Text != "open" {
		t.Errorf("expected public page, got %+v, %v", page, err)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	page, err := NewFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if page.Text != "OK" {
		t.Errorf("unexpected text: %q", page.Text)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	if _, err := NewFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), server.URL); err != nil {
		t.Fatalf("expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{Code: 503}, true},
		{"500", &StatusError{Code: 500}, true},
		{"429", &StatusError{Code: 429}, true},
		{"404", &StatusError{Code: 404}, false},
		{"403", &StatusError{Code: 403}, false},
		{"connection refused", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}), true},
		{"timeout", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}), false},
		{"cancelled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"too large", ErrTooLarge, false},
		{"not html", ErrNotHTML, false},
		{"invalid url", ErrInvalidURL, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestFetchReason(t *testing.T) {
	tests := map[string]error{
		"skipped":      ErrNonHTMLResource,
		"robots":       ErrDisallowed,
		"status":       &StatusError{Code: 500},
		"content_type": fmt.Errorf("%w: %q", ErrNotHTML, "image/png"),
		"too_large":    ErrTooLarge,
		"error":        errors.New("boom"),
	}
	for want, err := range tests {
		if got := fetchReason(err); got != want {
			t.Errorf("fetchReason(%v) = %q, want %q", err, got, want)
		}
	}
}
